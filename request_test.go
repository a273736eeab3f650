// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wawire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	waBinary "github.com/profchaos/wawire/binary"
	"github.com/profchaos/wawire/store"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return NewClient(store.NewMemoryDevice(), nil)
}

func TestGenerateRequestIDSequence(t *testing.T) {
	cli := newTestClient(t)
	cli.uniqueID = "AB."
	assert.Equal(t, "AB.1", cli.generateRequestID())
	assert.Equal(t, "AB.2", cli.generateRequestID())
	assert.Equal(t, "AB.3", cli.generateRequestID())
}

func TestGenerateRequestIDUnique(t *testing.T) {
	cli := newTestClient(t)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := cli.generateRequestID()
		require.False(t, seen[id], "duplicate request ID %s", id)
		seen[id] = true
	}
}

func TestReceiveResponseMatchesWaiter(t *testing.T) {
	cli := newTestClient(t)
	ch := cli.waitResponse("test-1")

	node := &waBinary.Node{Tag: "iq", Attrs: waBinary.Attrs{"id": "test-1", "type": "result"}}
	require.True(t, cli.receiveResponse(node))
	select {
	case resp := <-ch:
		assert.Equal(t, node, resp)
	default:
		t.Fatal("expected response on channel")
	}

	// The waiter is consumed: a second response with the same tag is dropped
	assert.False(t, cli.receiveResponse(node))
	assert.Len(t, cli.responseWaiters, 0)
}

func TestReceiveResponseUnknownTag(t *testing.T) {
	cli := newTestClient(t)
	node := &waBinary.Node{Tag: "iq", Attrs: waBinary.Attrs{"id": "never-sent"}}
	assert.False(t, cli.receiveResponse(node))
}

func TestReceiveResponseIgnoresNonResponseNodes(t *testing.T) {
	cli := newTestClient(t)
	cli.waitResponse("test-1")
	node := &waBinary.Node{Tag: "notification", Attrs: waBinary.Attrs{"id": "test-1"}}
	assert.False(t, cli.receiveResponse(node))
	assert.Len(t, cli.responseWaiters, 1)
}

func TestClearResponseWaiters(t *testing.T) {
	cli := newTestClient(t)
	ch1 := cli.waitResponse("tag-1")
	ch2 := cli.waitResponse("tag-2")

	cli.clearResponseWaiters(xmlStreamEndNode)

	for _, ch := range []chan *waBinary.Node{ch1, ch2} {
		select {
		case resp := <-ch:
			assert.True(t, isDisconnectNode(resp))
		default:
			t.Fatal("expected disconnect node on channel")
		}
	}
	// No pending requests may leak after termination
	assert.Len(t, cli.responseWaiters, 0)
}

func TestCancelResponse(t *testing.T) {
	cli := newTestClient(t)
	ch := cli.waitResponse("tag-1")
	cli.cancelResponse("tag-1", ch)
	assert.Len(t, cli.responseWaiters, 0)
	_, open := <-ch
	assert.False(t, open)
}

func TestSendIQNotConnected(t *testing.T) {
	cli := newTestClient(t)
	_, err := cli.sendIQ(infoQuery{Namespace: "w:p", Type: iqGet})
	assert.ErrorIs(t, err, ErrNotConnected)
	// The waiter must not leak when sending fails
	assert.Len(t, cli.responseWaiters, 0)
}

func TestIsDisconnectNode(t *testing.T) {
	assert.True(t, isDisconnectNode(xmlStreamEndNode))
	assert.True(t, isDisconnectNode(&waBinary.Node{Tag: "stream:error"}))
	assert.False(t, isDisconnectNode(&waBinary.Node{Tag: "iq"}))
}
