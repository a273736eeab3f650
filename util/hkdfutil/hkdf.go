// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package hkdfutil contains a simple wrapper for golang.org/x/crypto/hkdf that reads a specified number of bytes.
package hkdfutil

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SHA256 expands the given key to the requested length using HKDF-SHA256.
// Both salt and info may be nil.
func SHA256(key, salt, info []byte, length uint8) []byte {
	data := make([]byte, length)
	n, err := io.ReadFull(hkdf.New(sha256.New, key, salt, info), data)
	if err != nil {
		// Reading <255 bytes from hkdf can only fail if the key is invalid
		panic(fmt.Errorf("failed to expand key: %w", err))
	} else if n != int(length) {
		panic(fmt.Errorf("didn't read enough bytes when expanding key: %d != %d", n, length))
	}
	return data
}

// Info strings for expanding media keys.
const (
	InfoImageKeys    = "WhatsApp Image Keys"
	InfoStickerKeys  = "WhatsApp Image Keys"
	InfoVideoKeys    = "WhatsApp Video Keys"
	InfoAudioKeys    = "WhatsApp Audio Keys"
	InfoDocumentKeys = "WhatsApp Document Keys"
)
