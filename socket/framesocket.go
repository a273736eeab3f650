// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package socket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	waLog "github.com/profchaos/wawire/util/log"
)

// FrameSocket wraps a websocket connection and splits the byte stream into
// length-prefixed frames. A single websocket message may contain any number
// of frames, and a frame may span multiple messages.
type FrameSocket struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
	log    waLog.Logger
	lock   sync.Mutex

	URL         string
	HTTPHeaders http.Header
	HTTPClient  *http.Client

	OnFrame      func([]byte)
	OnDisconnect func(remote bool)

	Header []byte

	incomingLength int
	receivedLength int
	incoming       []byte
	partialHeader  []byte
}

func NewFrameSocket(log waLog.Logger, client *http.Client) *FrameSocket {
	return &FrameSocket{
		log:    log,
		Header: WAConnHeader,

		URL:         URL,
		HTTPHeaders: http.Header{"Origin": {Origin}},
		HTTPClient:  client,
	}
}

func (fs *FrameSocket) IsConnected() bool {
	return fs.conn != nil
}

func (fs *FrameSocket) Context() context.Context {
	return fs.ctx
}

// Close closes the underlying websocket. If code is non-zero, a close frame
// with that status is sent first; code 0 force-closes and is treated as a
// remote/errored disconnection by the OnDisconnect callback.
func (fs *FrameSocket) Close(code websocket.StatusCode) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.conn == nil {
		return
	}

	if code > 0 {
		err := fs.conn.Close(code, "")
		if err != nil {
			fs.log.Warnf("Error sending close to websocket: %v", err)
		}
	} else {
		err := fs.conn.CloseNow()
		if err != nil {
			fs.log.Debugf("Error force closing websocket: %v", err)
		}
	}
	fs.conn = nil
	fs.cancel()
	if fs.OnDisconnect != nil {
		go fs.OnDisconnect(code == 0)
	}
}

// Connect dials the websocket. The given context only bounds the dial; the
// connection itself lives until Close is called.
func (fs *FrameSocket) Connect(dialCtx context.Context) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.conn != nil {
		return ErrSocketAlreadyOpen
	}
	fs.ctx, fs.cancel = context.WithCancel(context.Background())

	fs.log.Debugf("Dialing %s", fs.URL)
	conn, resp, err := websocket.Dial(dialCtx, fs.URL, &websocket.DialOptions{
		HTTPClient:      fs.HTTPClient,
		HTTPHeader:      fs.HTTPHeaders,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		fs.cancel()
		if resp != nil {
			return fmt.Errorf("failed to dial websocket (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to dial websocket: %w", err)
	}
	conn.SetReadLimit(FrameMaxSize + FrameLengthSize)

	fs.conn = conn

	go fs.readPump(conn, fs.ctx)
	return nil
}

func (fs *FrameSocket) SendFrame(data []byte) error {
	dataLength := len(data)
	if dataLength > FrameMaxSize {
		return fmt.Errorf("%w (got %d bytes, max %d bytes)", ErrFrameTooLarge, dataLength, FrameMaxSize)
	}
	conn := fs.conn
	if conn == nil {
		return ErrSocketClosed
	}

	headerLength := len(fs.Header)
	// Whole frame is header + 3 bytes for length + data
	wholeFrame := make([]byte, headerLength+FrameLengthSize+dataLength)

	// Copy the header if it's there
	if fs.Header != nil {
		copy(wholeFrame[:headerLength], fs.Header)
		// We only want to send the header once
		fs.Header = nil
	}

	// Encode length of frame
	wholeFrame[headerLength] = byte(dataLength >> 16)
	wholeFrame[headerLength+1] = byte(dataLength >> 8)
	wholeFrame[headerLength+2] = byte(dataLength)

	// Copy actual frame data
	copy(wholeFrame[headerLength+FrameLengthSize:], data)

	return conn.Write(fs.ctx, websocket.MessageBinary, wholeFrame)
}

func (fs *FrameSocket) frameComplete() {
	data := fs.incoming
	fs.incoming = nil
	fs.partialHeader = nil
	fs.incomingLength = 0
	fs.receivedLength = 0
	if fs.OnFrame == nil {
		fs.log.Warnf("No handler for received frame")
	} else {
		fs.OnFrame(data)
	}
}

func (fs *FrameSocket) processData(msg []byte) {
	for len(msg) > 0 {
		// This probably doesn't happen a lot (if at all), so the code is unoptimized
		if fs.partialHeader != nil {
			msg = append(fs.partialHeader, msg...)
			fs.partialHeader = nil
		}
		if fs.incoming == nil {
			if len(msg) >= FrameLengthSize {
				length := (int(msg[0]) << 16) + (int(msg[1]) << 8) + int(msg[2])
				fs.incomingLength = length
				fs.receivedLength = len(msg)
				msg = msg[FrameLengthSize:]
				if len(msg) >= length {
					fs.incoming = msg[:length]
					msg = msg[length:]
					fs.frameComplete()
				} else {
					fs.incoming = make([]byte, length)
					copy(fs.incoming, msg)
					fs.receivedLength = len(msg)
					msg = nil
				}
			} else {
				fs.log.Warnf("Received partial header (report if this happens often)")
				fs.partialHeader = msg
				msg = nil
			}
		} else {
			if fs.receivedLength+len(msg) >= fs.incomingLength {
				copy(fs.incoming[fs.receivedLength:], msg[:fs.incomingLength-fs.receivedLength])
				msg = msg[fs.incomingLength-fs.receivedLength:]
				fs.frameComplete()
			} else {
				copy(fs.incoming[fs.receivedLength:], msg)
				fs.receivedLength += len(msg)
				msg = nil
			}
		}
	}
}

func (fs *FrameSocket) readPump(conn *websocket.Conn, ctx context.Context) {
	fs.log.Debugf("Frame websocket read pump starting %p", fs)
	defer func() {
		fs.log.Debugf("Frame websocket read pump exiting %p", fs)
		go fs.Close(0)
	}()
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			// Ignore the error if the context has been closed
			if !errors.Is(ctx.Err(), context.Canceled) {
				fs.log.Errorf("Error reading from websocket: %v", err)
			}
			return
		} else if msgType != websocket.MessageBinary {
			fs.log.Warnf("Got unexpected websocket message type %d", msgType)
			continue
		}
		fs.processData(data)
	}
}

func (fs *FrameSocket) SetOnFrame(onFrame func([]byte)) {
	fs.OnFrame = onFrame
}

func (fs *FrameSocket) GetOnFrame() func([]byte) {
	return fs.OnFrame
}
