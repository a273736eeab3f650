// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package socket implements the transport layer: a length-prefixed frame
// socket on top of a websocket, and the Noise encryption on top of that.
package socket

import "errors"

const (
	// URL is the websocket URL for the WhatsApp web multidevice API.
	URL = "wss://web.whatsapp.com/ws/chat"
	// Origin is the Origin header for all websocket connections.
	Origin = "https://web.whatsapp.com"

	NoiseStartPattern = "Noise_XX_25519_AESGCM_SHA256\x00\x00\x00\x00"

	WAMagicValue  = 6
	WADictVersion = 3
)

// WAConnHeader is the prologue sent before the first frame: "WA" followed by
// the protocol magic and the token dictionary version.
var WAConnHeader = []byte{'W', 'A', WAMagicValue, WADictVersion}

const (
	// FrameMaxSize is the maximum size of a frame payload: the length header
	// is 3 bytes, so one frame can hold up to 2^24-1 bytes.
	FrameMaxSize    = (1 << 24) - 1
	FrameLengthSize = 3
)

var (
	ErrFrameTooLarge     = errors.New("frame too large")
	ErrSocketClosed      = errors.New("frame socket is closed")
	ErrSocketAlreadyOpen = errors.New("frame socket is already open")
)
