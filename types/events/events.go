// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package events contains all the events that wawire.Client emits to functions
// registered with AddEventHandler.
package events

import (
	"fmt"
	"strconv"
	"time"

	"github.com/profchaos/wawire/binary"
	"github.com/profchaos/wawire/types"
)

// QR is emitted after connecting when there's no session data in the device store.
//
// The QR codes are available in the Codes slice. You should render the strings
// as QR codes one by one, switching to the next one whenever enough time has
// passed. The first code is valid for 60 seconds and all the rest for 20 each.
//
// The client does not time the codes out by itself. When the channel returned
// by GetQRChannel runs out of codes, it disconnects the client and a
// Disconnected event with reason ConnectFailureTimeout is emitted.
type QR struct {
	Codes []string
}

// PairSuccess is emitted after the QR code has been scanned with the phone
// and the handshake has been completed. Note that this is generally followed
// by a websocket reconnection, so you should wait for the Connected event
// before trying to send anything.
//
// The credentials have already been saved into the device store when this
// event is dispatched.
type PairSuccess struct {
	ID           types.JID
	BusinessName string
	Platform     string
}

// PairError is emitted when a pair-success event is received from the server,
// but finishing the pairing locally fails.
type PairError struct {
	ID           types.JID
	BusinessName string
	Platform     string
	Error        error
}

// Connected is emitted when the client has successfully authenticated with the
// WhatsApp servers.
type Connected struct{}

// KeepAliveTimeout is emitted when the keepalive ping hasn't seen any data from
// the server for too long. The connection is torn down right after this event
// with reason ConnectFailureTimeout.
type KeepAliveTimeout struct {
	LastDataReceived time.Time
}

// LoggedOut is emitted when the client has been unpaired from the phone.
//
// This can happen while connected (stream:error with a conflict), or after
// connecting (failure node with a 401 reason), or when the user calls Logout.
type LoggedOut struct {
	// OnConnect is true if the event was triggered by a connect failure message.
	// If it's false, the event was triggered by a stream:error message or a local logout.
	OnConnect bool
	Reason    ConnectFailureReason
}

// StreamError is emitted when the WhatsApp server sends a <stream:error> node
// with an unknown code. Known codes are handled internally and emitted as
// different events (e.g. LoggedOut and ConnectionReplaced).
type StreamError struct {
	Code string
	Raw  *binary.Node
}

// ConnectionReplaced is emitted when the client is disconnected by another
// client connecting with the same keys.
//
// This can happen if you accidentally start another process with the same
// session or otherwise try to connect twice with the same session.
type ConnectionReplaced struct{}

// ConnectFailureReason is a numeric code for the reason a session ended or
// failed to start, as defined by the server-side status codes.
type ConnectFailureReason int

const (
	ConnectFailureLoggedOut           ConnectFailureReason = 401
	ConnectFailureTimeout             ConnectFailureReason = 408
	ConnectFailureMultideviceMismatch ConnectFailureReason = 411
	ConnectFailureConnectionClosed    ConnectFailureReason = 428
	ConnectFailureReplaced            ConnectFailureReason = 440
	ConnectFailureBadSession          ConnectFailureReason = 500
	ConnectFailureRestartRequired     ConnectFailureReason = 515
)

var connectFailureReasonMessage = map[ConnectFailureReason]string{
	ConnectFailureLoggedOut:           "logged out from another device",
	ConnectFailureTimeout:             "timed out",
	ConnectFailureMultideviceMismatch: "multidevice mismatch",
	ConnectFailureConnectionClosed:    "connection closed",
	ConnectFailureReplaced:            "replaced by another connection",
	ConnectFailureBadSession:          "bad session",
	ConnectFailureRestartRequired:     "restart required",
}

// IsLoggedOut returns true if the client should delete the session data and
// not reconnect with it.
func (cfr ConnectFailureReason) IsLoggedOut() bool {
	return cfr == ConnectFailureLoggedOut || cfr == ConnectFailureMultideviceMismatch
}

func (cfr ConnectFailureReason) NumberString() string {
	return strconv.Itoa(int(cfr))
}

func (cfr ConnectFailureReason) String() string {
	msg, ok := connectFailureReasonMessage[cfr]
	if !ok {
		return fmt.Sprintf("unknown error (%d)", int(cfr))
	}
	return fmt.Sprintf("%s (%d)", msg, int(cfr))
}

// ConnectFailure is emitted when the WhatsApp server sends a <failure> node
// with an unknown reason after the client connects. Known reasons are handled
// internally and emitted as different events (e.g. LoggedOut).
type ConnectFailure struct {
	Reason  ConnectFailureReason
	Message string
	Raw     *binary.Node
}

// Disconnected is the last event of every session. It is emitted exactly once
// after the websocket is closed, whether the close was local or remote.
//
// The client will not reconnect by itself: if Reason warrants it (e.g.
// ConnectFailureRestartRequired after a pairing), call Connect again.
type Disconnected struct {
	Reason ConnectFailureReason
	Time   time.Time
}

// OfflineSyncCompleted is emitted after the server has finished sending
// notifications that were queued up while the client was offline.
type OfflineSyncCompleted struct {
	Count int
}
