// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wawire

import (
	"strconv"
	"time"

	waBinary "github.com/profchaos/wawire/binary"
	"github.com/profchaos/wawire/types"
)

// generateRequestID returns a new unique request tag: a random per-connection
// prefix followed by a counter that starts at 1.
func (cli *Client) generateRequestID() string {
	return cli.uniqueID + strconv.FormatUint(cli.idCounter.Add(1), 10)
}

var xmlStreamEndNode = &waBinary.Node{Tag: "xmlstreamend"}

func isDisconnectNode(node *waBinary.Node) bool {
	return node == xmlStreamEndNode || node.Tag == "stream:error"
}

// clearResponseWaiters fails all pending requests with the given node.
// After this, the pending request table is empty.
func (cli *Client) clearResponseWaiters(node *waBinary.Node) {
	cli.responseWaitersLock.Lock()
	for _, waiter := range cli.responseWaiters {
		select {
		case waiter <- node:
		default:
			close(waiter)
		}
	}
	cli.responseWaiters = make(map[string]chan<- *waBinary.Node)
	cli.responseWaitersLock.Unlock()
}

func (cli *Client) waitResponse(reqID string) chan *waBinary.Node {
	ch := make(chan *waBinary.Node, 1)
	cli.responseWaitersLock.Lock()
	cli.responseWaiters[reqID] = ch
	cli.responseWaitersLock.Unlock()
	return ch
}

func (cli *Client) cancelResponse(reqID string, ch chan *waBinary.Node) {
	cli.responseWaitersLock.Lock()
	close(ch)
	delete(cli.responseWaiters, reqID)
	cli.responseWaitersLock.Unlock()
}

// receiveResponse wakes up the pending request matching the incoming node's
// id attribute, if any. A late response whose waiter has already been removed
// (e.g. by a timeout) is dropped and reported as unhandled.
func (cli *Client) receiveResponse(data *waBinary.Node) bool {
	id, ok := data.Attrs["id"].(string)
	if !ok || (data.Tag != "iq" && data.Tag != "ack") {
		return false
	}
	cli.responseWaitersLock.Lock()
	waiter, ok := cli.responseWaiters[id]
	if !ok {
		cli.responseWaitersLock.Unlock()
		return false
	}
	delete(cli.responseWaiters, id)
	cli.responseWaitersLock.Unlock()
	waiter <- data
	return true
}

type infoQueryType string

const (
	iqSet infoQueryType = "set"
	iqGet infoQueryType = "get"
)

type infoQuery struct {
	Namespace string
	Type      infoQueryType
	To        types.JID
	ID        string
	Content   any

	// Timeout overrides the client's DefaultQueryTimeout: zero keeps the
	// default and a negative value means the query never times out (it's
	// only resolved by a response or the connection ending).
	Timeout time.Duration
}

// sendIQAsync sends an info query and returns the channel the response will
// be delivered on without waiting for it.
func (cli *Client) sendIQAsync(query infoQuery) (<-chan *waBinary.Node, error) {
	if cli == nil {
		return nil, ErrClientIsNil
	}
	if len(query.ID) == 0 {
		query.ID = cli.generateRequestID()
	}
	waiter := cli.waitResponse(query.ID)
	attrs := waBinary.Attrs{
		"id":    query.ID,
		"xmlns": query.Namespace,
		"type":  string(query.Type),
	}
	if !query.To.IsEmpty() {
		attrs["to"] = query.To
	}
	err := cli.sendNode(waBinary.Node{
		Tag:     "iq",
		Attrs:   attrs,
		Content: query.Content,
	})
	if err != nil {
		cli.cancelResponse(query.ID, waiter)
		return nil, err
	}
	return waiter, nil
}

// sendIQ sends an info query and waits for the matching response, the query
// timeout or the end of the connection, whichever comes first.
func (cli *Client) sendIQ(query infoQuery) (*waBinary.Node, error) {
	resChan, err := cli.sendIQAsync(query)
	if err != nil {
		return nil, err
	}
	timeout := query.Timeout
	if timeout == 0 {
		timeout = cli.DefaultQueryTimeout
	}
	var timeoutChan <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutChan = timer.C
	}
	select {
	case res, ok := <-resChan:
		if !ok || isDisconnectNode(res) {
			return nil, &DisconnectedError{Action: "info query", Node: res}
		}
		resType, _ := res.Attrs["type"].(string)
		if res.Tag != "iq" || (resType != "result" && resType != "error") {
			return res, &IQError{RawNode: res}
		} else if resType == "error" {
			return res, parseIQError(res)
		}
		return res, nil
	case <-timeoutChan:
		cli.responseWaitersLock.Lock()
		delete(cli.responseWaiters, query.ID)
		cli.responseWaitersLock.Unlock()
		return nil, ErrIQTimedOut
	}
}
