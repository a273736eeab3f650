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
)

func marshalFrame(t *testing.T, node waBinary.Node) []byte {
	t.Helper()
	frame, err := waBinary.Marshal(node)
	require.NoError(t, err)
	return frame
}

func TestHandleFrameResolvesWaiter(t *testing.T) {
	cli := newTestClient(t)
	ch := cli.waitResponse("id-1")

	node := waBinary.Node{Tag: "iq", Attrs: waBinary.Attrs{"id": "id-1", "type": "result"}}
	cli.handleFrame(marshalFrame(t, node))

	select {
	case resp := <-ch:
		assert.Equal(t, "iq", resp.Tag)
		assert.Equal(t, "id-1", resp.Attrs["id"])
	default:
		t.Fatal("expected response on channel")
	}
	assert.Len(t, cli.responseWaiters, 0)
}

func TestHandleFrameUpdatesReceiveTimestamp(t *testing.T) {
	cli := newTestClient(t)
	require.Zero(t, cli.lastDataReceived.Load())
	cli.handleFrame(marshalFrame(t, waBinary.Node{Tag: "ping"}))
	assert.NotZero(t, cli.lastDataReceived.Load())
}

func TestHandleFrameQueuesKnownNodes(t *testing.T) {
	cli := newTestClient(t)
	cli.handleFrame(marshalFrame(t, waBinary.Node{Tag: "ib"}))
	select {
	case node := <-cli.handlerQueue:
		assert.Equal(t, "ib", node.Tag)
	default:
		t.Fatal("expected node in handler queue")
	}
}

func TestHandleFrameGarbageIsDropped(t *testing.T) {
	cli := newTestClient(t)
	// Invalid frames are logged and dropped without panicking
	cli.handleFrame([]byte{0x00, 0xEB, 0x01, 0x02})
	cli.handleFrame([]byte{})
}

func TestEventHandlerAddRemove(t *testing.T) {
	cli := newTestClient(t)
	var calls int
	id := cli.AddEventHandler(func(any) { calls++ })
	cli.dispatchEvent("test")
	assert.Equal(t, 1, calls)

	assert.True(t, cli.RemoveEventHandler(id))
	cli.dispatchEvent("test")
	assert.Equal(t, 1, calls)
	assert.False(t, cli.RemoveEventHandler(id))
}

func TestDispatchEventRecoversPanics(t *testing.T) {
	cli := newTestClient(t)
	cli.AddEventHandler(func(any) { panic("boom") })
	assert.NotPanics(t, func() {
		cli.dispatchEvent("test")
	})
}
