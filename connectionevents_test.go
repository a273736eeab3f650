// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wawire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	waBinary "github.com/profchaos/wawire/binary"
	"github.com/profchaos/wawire/types/events"
)

func collectEvents(cli *Client) <-chan any {
	ch := make(chan any, 16)
	cli.AddEventHandler(func(evt any) {
		ch <- evt
	})
	return ch
}

func waitForEvent[T any](t *testing.T, ch <-chan any) T {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case evt := <-ch:
			if typed, ok := evt.(T); ok {
				return typed
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T event", zero)
			return zero
		}
	}
}

func TestHandleStreamErrorRestartRequired(t *testing.T) {
	cli := newTestClient(t)
	cli.handleStreamError(&waBinary.Node{Tag: "stream:error", Attrs: waBinary.Attrs{"code": "515"}})
	require.Eventually(t, func() bool {
		return events.ConnectFailureReason(cli.disconnectReason.Load()) == events.ConnectFailureRestartRequired
	}, time.Second, 10*time.Millisecond)
	assert.True(t, cli.expectedDisconnect.Load())
	assert.False(t, cli.IsLoggedIn())
}

func TestHandleStreamErrorReplaced(t *testing.T) {
	cli := newTestClient(t)
	ch := collectEvents(cli)
	cli.handleStreamError(&waBinary.Node{
		Tag:     "stream:error",
		Content: []waBinary.Node{{Tag: "conflict", Attrs: waBinary.Attrs{"type": "replaced"}}},
	})
	waitForEvent[*events.ConnectionReplaced](t, ch)
	require.Eventually(t, func() bool {
		return events.ConnectFailureReason(cli.disconnectReason.Load()) == events.ConnectFailureReplaced
	}, time.Second, 10*time.Millisecond)
}

func TestHandleStreamErrorAfterPairingIsBadSession(t *testing.T) {
	cli := newTestClient(t)
	cli.recentlyPaired.Store(true)
	cli.handleStreamError(&waBinary.Node{Tag: "stream:error", Attrs: waBinary.Attrs{"code": "503"}})
	require.Eventually(t, func() bool {
		return events.ConnectFailureReason(cli.disconnectReason.Load()) == events.ConnectFailureBadSession
	}, time.Second, 10*time.Millisecond)
}

func TestHandleConnectFailureLoggedOut(t *testing.T) {
	cli := newTestClient(t)
	ch := collectEvents(cli)
	cli.handleConnectFailure(&waBinary.Node{Tag: "failure", Attrs: waBinary.Attrs{"reason": "401"}})
	evt := waitForEvent[*events.LoggedOut](t, ch)
	assert.True(t, evt.OnConnect)
	assert.Equal(t, events.ConnectFailureLoggedOut, evt.Reason)
}

func TestHandleIBOffline(t *testing.T) {
	cli := newTestClient(t)
	ch := collectEvents(cli)
	cli.handleIB(&waBinary.Node{
		Tag:     "ib",
		Content: []waBinary.Node{{Tag: "offline", Attrs: waBinary.Attrs{"count": "5"}}},
	})
	evt := waitForEvent[*events.OfflineSyncCompleted](t, ch)
	assert.Equal(t, 5, evt.Count)
}

func TestConnectFailureReasonTaxonomy(t *testing.T) {
	assert.True(t, events.ConnectFailureLoggedOut.IsLoggedOut())
	assert.True(t, events.ConnectFailureMultideviceMismatch.IsLoggedOut())
	assert.False(t, events.ConnectFailureReplaced.IsLoggedOut())
	assert.Equal(t, "401", events.ConnectFailureLoggedOut.NumberString())
	assert.Equal(t, "restart required (515)", events.ConnectFailureRestartRequired.String())
}
