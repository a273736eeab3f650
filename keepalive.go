// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wawire

import (
	"context"
	"time"

	waBinary "github.com/profchaos/wawire/binary"
	"github.com/profchaos/wawire/types"
	"github.com/profchaos/wawire/types/events"
	waLog "github.com/profchaos/wawire/util/log"
)

// keepAliveGracePeriod is how much longer than the ping interval the
// connection may stay silent before it's considered lost.
const keepAliveGracePeriod = 5 * time.Second

// isConnectionStale reports whether the connection should be considered lost,
// given the timestamp of the last received frame.
func isConnectionStale(lastDataReceived time.Time, now time.Time, interval time.Duration) bool {
	return now.Sub(lastDataReceived) > interval+keepAliveGracePeriod
}

// keepAliveLoop pings the server on the configured interval until the
// connection context ends. Each tick first checks staleness: receiving any
// frame counts as life, not just ping responses.
func (cli *Client) keepAliveLoop(ctx context.Context) {
	cli.lastDataReceived.Store(time.Now().UnixMilli())
	log := cli.Log.Sub("KeepAlive")
	for {
		select {
		case <-time.After(cli.KeepAliveInterval):
			lastData := time.UnixMilli(cli.lastDataReceived.Load())
			if isConnectionStale(lastData, time.Now(), cli.KeepAliveInterval) {
				log.Warnf("Last data received %s ago, disconnecting", time.Since(lastData))
				cli.dispatchEvent(&events.KeepAliveTimeout{LastDataReceived: lastData})
				cli.disconnectWithReason(events.ConnectFailureTimeout)
				return
			}
			if !cli.sendKeepAlive(ctx, log) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (cli *Client) sendKeepAlive(ctx context.Context, log waLog.Logger) bool {
	respCh, err := cli.sendIQAsync(infoQuery{
		Namespace: "w:p",
		Type:      iqGet,
		To:        types.ServerJID,
		Content:   []waBinary.Node{{Tag: "ping"}},
	})
	if err != nil {
		log.Warnf("Failed to send keepalive: %v", err)
		return true
	}
	select {
	case <-respCh:
		// All good
	case <-ctx.Done():
		return false
	case <-time.After(cli.KeepAliveInterval):
		// Staleness is judged by the received-frame timestamp on the next
		// tick, so a missing pong alone doesn't kill the connection.
		log.Warnf("Keepalive ping didn't get a response")
	}
	return true
}
