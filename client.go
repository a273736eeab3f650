// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package wawire implements a client for the WhatsApp web multidevice API.
package wawire

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	waBinary "github.com/profchaos/wawire/binary"
	"github.com/profchaos/wawire/socket"
	"github.com/profchaos/wawire/store"
	"github.com/profchaos/wawire/types"
	"github.com/profchaos/wawire/types/events"
	"github.com/profchaos/wawire/util/keys"
	waLog "github.com/profchaos/wawire/util/log"
)

// EventHandler is a function that can handle events from WhatsApp.
type EventHandler func(evt any)
type nodeHandler func(node *waBinary.Node)

var nextHandlerID uint32

type wrappedEventHandler struct {
	fn EventHandler
	id uint32
}

// Client contains everything necessary to connect to and interact with the
// WhatsApp web API.
type Client struct {
	Store   *store.Device
	Log     waLog.Logger
	recvLog waLog.Logger
	sendLog waLog.Logger

	socket     *socket.NoiseSocket
	socketLock sync.RWMutex

	// ConnectTimeout bounds opening the websocket and completing the Noise
	// handshake. Zero means no deadline.
	ConnectTimeout time.Duration
	// KeepAliveInterval is the ping cadence. The connection is considered
	// lost when no frame has been received for the interval plus a 5 second
	// grace period.
	KeepAliveInterval time.Duration
	// DefaultQueryTimeout is used for info queries that don't override the
	// timeout. A negative per-query timeout disables the deadline entirely.
	DefaultQueryTimeout time.Duration

	isLoggedIn         atomic.Bool
	expectedDisconnect atomic.Bool
	disconnectReason   atomic.Int32
	recentlyPaired     atomic.Bool

	// lastDataReceived is the unix millisecond timestamp of the latest
	// decrypted frame, updated for every frame rather than only pongs.
	lastDataReceived atomic.Int64

	http *http.Client

	responseWaiters     map[string]chan<- *waBinary.Node
	responseWaitersLock sync.Mutex

	nodeHandlers      map[string]nodeHandler
	handlerQueue      chan *waBinary.Node
	eventHandlers     []wrappedEventHandler
	eventHandlersLock sync.RWMutex

	uniqueID  string
	idCounter atomic.Uint64
}

const handlerQueueSize = 2048

// NewClient initializes a new WhatsApp web client.
//
// The device store must be set. SQL- and Redis-backed implementations are
// available in the store/sqlstore and store/redisstore packages, and
// store.NewMemoryDevice gives a throwaway in-memory one.
//
// The logger can be nil, it will default to a no-op logger.
func NewClient(deviceStore *store.Device, log waLog.Logger) *Client {
	if log == nil {
		log = waLog.Noop
	}
	randomBytes := make([]byte, 2)
	_, _ = rand.Read(randomBytes)
	cli := &Client{
		Store:           deviceStore,
		Log:             log,
		recvLog:         log.Sub("Recv"),
		sendLog:         log.Sub("Send"),
		http:            &http.Client{},
		uniqueID:        fmt.Sprintf("%d.%d-", randomBytes[0], randomBytes[1]),
		responseWaiters: make(map[string]chan<- *waBinary.Node),
		eventHandlers:   make([]wrappedEventHandler, 0, 1),
		handlerQueue:    make(chan *waBinary.Node, handlerQueueSize),

		ConnectTimeout:      20 * time.Second,
		KeepAliveInterval:   30 * time.Second,
		DefaultQueryTimeout: 75 * time.Second,
	}
	cli.nodeHandlers = map[string]nodeHandler{
		"success":      cli.handleConnectSuccess,
		"failure":      cli.handleConnectFailure,
		"stream:error": cli.handleStreamError,
		"ib":           cli.handleIB,
		"iq":           cli.handleIQ,
	}
	return cli
}

// Connect connects the client to the WhatsApp web websocket. After connection,
// it will either authenticate if there's data in the device store, or emit an
// events.QR event to set up a new link.
//
// The client does not reconnect by itself: when a Disconnected event arrives,
// deciding whether to call Connect again is up to the caller.
func (cli *Client) Connect() error {
	if cli == nil {
		return ErrClientIsNil
	}
	cli.socketLock.Lock()
	defer cli.socketLock.Unlock()
	if cli.socket != nil {
		if !cli.socket.IsConnected() {
			cli.unlockedDisconnect()
		} else {
			return ErrAlreadyConnected
		}
	}

	cli.expectedDisconnect.Store(false)
	cli.disconnectReason.Store(int32(events.ConnectFailureConnectionClosed))
	cli.recentlyPaired.Store(false)

	ctx := context.Background()
	cancel := context.CancelFunc(func() {})
	if cli.ConnectTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cli.ConnectTimeout)
	}
	defer cancel()

	fs := socket.NewFrameSocket(cli.Log.Sub("Socket"), cli.http)
	if err := fs.Connect(ctx); err != nil {
		fs.Close(0)
		return err
	} else if err = cli.doHandshake(ctx, fs, *keys.NewKeyPair()); err != nil {
		fs.Close(0)
		return fmt.Errorf("noise handshake failed: %w", err)
	}
	go cli.keepAliveLoop(cli.socket.Context())
	go cli.handlerQueueLoop(cli.socket.Context())
	return nil
}

// IsLoggedIn returns true after the client is authenticated (i.e. after the
// server accepted the login and before the next disconnection).
func (cli *Client) IsLoggedIn() bool {
	return cli != nil && cli.isLoggedIn.Load()
}

func (cli *Client) onDisconnect(ns *socket.NoiseSocket, remote bool) {
	ns.Stop(false)
	cli.socketLock.Lock()
	defer cli.socketLock.Unlock()
	if cli.socket == ns {
		cli.socket = nil
		cli.clearResponseWaiters(xmlStreamEndNode)
		cli.isLoggedIn.Store(false)
		reason := events.ConnectFailureReason(cli.disconnectReason.Load())
		if !cli.expectedDisconnect.Load() && remote {
			cli.Log.Debugf("Emitting Disconnected event")
			go cli.dispatchEvent(&events.Disconnected{Reason: reason, Time: time.Now()})
		} else {
			cli.Log.Debugf("OnDisconnect() called after expected disconnection")
			go cli.dispatchEvent(&events.Disconnected{Reason: reason, Time: time.Now()})
		}
	} else {
		cli.Log.Debugf("Ignoring OnDisconnect on different socket")
	}
}

func (cli *Client) expectDisconnect() {
	cli.expectedDisconnect.Store(true)
}

// IsConnected checks if the client is connected to the WhatsApp web websocket.
// Note that this doesn't check if the client is authenticated.
func (cli *Client) IsConnected() bool {
	if cli == nil {
		return false
	}
	cli.socketLock.RLock()
	connected := cli.socket != nil && cli.socket.IsConnected()
	cli.socketLock.RUnlock()
	return connected
}

// Disconnect closes the websocket connection and emits the final Disconnected
// event for the session.
func (cli *Client) Disconnect() {
	if cli == nil || cli.socket == nil {
		return
	}
	cli.socketLock.Lock()
	cli.unlockedDisconnect()
	cli.socketLock.Unlock()
}

func (cli *Client) disconnectWithReason(reason events.ConnectFailureReason) {
	cli.disconnectReason.Store(int32(reason))
	cli.expectDisconnect()
	cli.socketLock.Lock()
	cli.unlockedDisconnect()
	cli.socketLock.Unlock()
}

// unlockedDisconnect closes the websocket connection and emits the Disconnected
// event. The caller must hold socketLock.
func (cli *Client) unlockedDisconnect() {
	if cli.socket != nil {
		sock := cli.socket
		cli.socket = nil
		sock.Stop(true)
		cli.clearResponseWaiters(xmlStreamEndNode)
		cli.isLoggedIn.Store(false)
		reason := events.ConnectFailureReason(cli.disconnectReason.Load())
		go cli.dispatchEvent(&events.Disconnected{Reason: reason, Time: time.Now()})
	}
}

// Logout sends a request to remove this companion device from the account and
// then deletes the session data. A LoggedOut event is dispatched at the end.
func (cli *Client) Logout() error {
	if cli == nil {
		return ErrClientIsNil
	}
	ownID := cli.Store.ID
	if ownID == nil {
		return ErrNotLoggedIn
	}
	_, err := cli.sendIQ(infoQuery{
		Namespace: "md",
		Type:      iqSet,
		To:        types.ServerJID,
		Content: []waBinary.Node{{
			Tag: "remove-companion-device",
			Attrs: waBinary.Attrs{
				"jid":    *ownID,
				"reason": "user_initiated",
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("error sending logout request: %w", err)
	}
	cli.disconnectWithReason(events.ConnectFailureLoggedOut)
	err = cli.Store.Delete()
	if err != nil {
		return fmt.Errorf("error deleting data from store: %w", err)
	}
	cli.dispatchEvent(&events.LoggedOut{OnConnect: false, Reason: events.ConnectFailureLoggedOut})
	return nil
}

// AddEventHandler registers a new function to receive all events emitted by
// this client.
//
// The returned integer is the event handler ID, which can be passed to
// RemoveEventHandler to remove it.
//
// Handlers are called synchronously, one after another, on whichever goroutine
// dispatches the event. Some events (e.g. events.QR) are dispatched from the
// node-handling goroutine, so a handler that blocks for long delays the
// processing of incoming nodes.
func (cli *Client) AddEventHandler(handler EventHandler) uint32 {
	nextID := atomic.AddUint32(&nextHandlerID, 1)
	cli.eventHandlersLock.Lock()
	cli.eventHandlers = append(cli.eventHandlers, wrappedEventHandler{handler, nextID})
	cli.eventHandlersLock.Unlock()
	return nextID
}

// RemoveEventHandler removes a previously registered event handler function.
// If the function with the given ID is found, this returns true.
//
// N.B. Do not run this directly from an event handler. That would cause a
// deadlock because the event dispatcher holds a read lock on the handler list.
func (cli *Client) RemoveEventHandler(id uint32) bool {
	cli.eventHandlersLock.Lock()
	defer cli.eventHandlersLock.Unlock()
	for index := range cli.eventHandlers {
		if cli.eventHandlers[index].id == id {
			if index == 0 {
				cli.eventHandlers[0].fn = nil
				cli.eventHandlers = cli.eventHandlers[1:]
				return true
			} else if index < len(cli.eventHandlers)-1 {
				copy(cli.eventHandlers[index:], cli.eventHandlers[index+1:])
			}
			cli.eventHandlers[len(cli.eventHandlers)-1].fn = nil
			cli.eventHandlers = cli.eventHandlers[:len(cli.eventHandlers)-1]
			return true
		}
	}
	return false
}

// RemoveEventHandlers removes all event handlers that have been registered
// with AddEventHandler.
func (cli *Client) RemoveEventHandlers() {
	cli.eventHandlersLock.Lock()
	cli.eventHandlers = make([]wrappedEventHandler, 0, 1)
	cli.eventHandlersLock.Unlock()
}

func (cli *Client) handleFrame(data []byte) {
	cli.lastDataReceived.Store(time.Now().UnixMilli())
	decompressed, err := waBinary.Unpack(data)
	if err != nil {
		cli.Log.Warnf("Failed to decompress frame: %v", err)
		cli.Log.Debugf("Errored frame hex: %s", hex.EncodeToString(data))
		return
	}
	node, err := waBinary.Unmarshal(decompressed)
	if err != nil {
		cli.Log.Warnf("Failed to decode node in frame: %v", err)
		cli.Log.Debugf("Errored frame hex: %s", hex.EncodeToString(decompressed))
		return
	}
	cli.recvLog.Debugf("%s", node.XMLString())
	if node.Tag == "xmlstreamend" {
		if !cli.expectedDisconnect.Load() {
			cli.Log.Warnf("Received stream end frame")
		}
	} else if cli.receiveResponse(node) {
		// handled as a response to a pending request
	} else if _, ok := cli.nodeHandlers[node.Tag]; ok {
		select {
		case cli.handlerQueue <- node:
		default:
			cli.Log.Warnf("Handler queue is full, message ordering is no longer guaranteed")
			go func() {
				cli.handlerQueue <- node
			}()
		}
	} else {
		cli.Log.Debugf("Didn't handle WhatsApp node %s", node.Tag)
	}
}

func (cli *Client) handlerQueueLoop(ctx context.Context) {
	for {
		select {
		case node := <-cli.handlerQueue:
			cli.nodeHandlers[node.Tag](node)
		case <-ctx.Done():
			return
		}
	}
}

func (cli *Client) sendNode(node waBinary.Node) error {
	cli.socketLock.RLock()
	sock := cli.socket
	cli.socketLock.RUnlock()
	if sock == nil {
		return ErrNotConnected
	}

	payload, err := waBinary.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}

	cli.sendLog.Debugf("%s", node.XMLString())
	return sock.SendFrame(payload)
}

func (cli *Client) dispatchEvent(evt any) {
	cli.eventHandlersLock.RLock()
	defer func() {
		cli.eventHandlersLock.RUnlock()
		err := recover()
		if err != nil {
			cli.Log.Errorf("Event handler panicked while handling a %T: %v", evt, err)
		}
	}()
	for _, handler := range cli.eventHandlers {
		handler.fn(evt)
	}
}
