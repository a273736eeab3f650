// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package socket

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandshakePair(t *testing.T) (*NoiseHandshake, *NoiseHandshake) {
	t.Helper()
	a := NewNoiseHandshake()
	a.Start(NoiseStartPattern, WAConnHeader)
	b := NewNoiseHandshake()
	b.Start(NoiseStartPattern, WAConnHeader)

	shared := make([]byte, 32)
	_, err := rand.Read(shared)
	require.NoError(t, err)
	a.Authenticate(shared)
	b.Authenticate(shared)
	require.NoError(t, a.MixIntoKey(shared))
	require.NoError(t, b.MixIntoKey(shared))
	return a, b
}

func TestNoiseHandshakeEncryptDecrypt(t *testing.T) {
	a, b := newHandshakePair(t)

	first := []byte("first handshake payload")
	second := []byte("second handshake payload")

	ct1 := a.Encrypt(first)
	pt1, err := b.Decrypt(ct1)
	require.NoError(t, err)
	assert.Equal(t, first, pt1)

	ct2 := a.Encrypt(second)
	pt2, err := b.Decrypt(ct2)
	require.NoError(t, err)
	assert.Equal(t, second, pt2)
}

func TestNoiseHandshakeReplayRejected(t *testing.T) {
	a, b := newHandshakePair(t)

	ct := a.Encrypt([]byte("payload"))
	_, err := b.Decrypt(ct)
	require.NoError(t, err)

	// The nonce counter and transcript hash have moved on, so the same
	// ciphertext must not decrypt a second time.
	_, err = b.Decrypt(ct)
	assert.Error(t, err)
}

func TestNoiseHandshakeTamperedCiphertextRejected(t *testing.T) {
	a, b := newHandshakePair(t)

	ct := a.Encrypt([]byte("payload"))
	ct[0] ^= 0x01
	_, err := b.Decrypt(ct)
	assert.Error(t, err)
}

func TestNoiseFrameOrdering(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	sender, err := newCipher(key)
	require.NoError(t, err)
	receiver, err := newCipher(key)
	require.NoError(t, err)

	plaintexts := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	frames := make([][]byte, len(plaintexts))
	for i, pt := range plaintexts {
		frames[i] = sender.Seal(nil, generateIV(uint32(i)), pt, nil)
	}

	// In order: all frames decrypt.
	for i, frame := range frames {
		pt, err := receiver.Open(nil, generateIV(uint32(i)), frame, nil)
		require.NoError(t, err)
		assert.Equal(t, plaintexts[i], pt)
	}

	// Reordered: frame 2 under nonce 1 must fail.
	_, err = receiver.Open(nil, generateIV(1), frames[2], nil)
	assert.Error(t, err)
	// Duplicated: frame 0 under the next nonce must fail.
	_, err = receiver.Open(nil, generateIV(3), frames[0], nil)
	assert.Error(t, err)
}
