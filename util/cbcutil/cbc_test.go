// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cbcutil

import (
	"bytes"
	"crypto/aes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func TestEncryptDecryptExplicitIV(t *testing.T) {
	key := randomBytes(t, 32)
	iv := randomBytes(t, aes.BlockSize)
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	ciphertext, err := Encrypt(key, iv, plaintext)
	require.NoError(t, err)
	// Explicit IV is not stored in the output
	assert.Equal(t, (len(plaintext)/aes.BlockSize+1)*aes.BlockSize, len(ciphertext))

	decrypted, err := Decrypt(key, iv, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptDecryptRandomIV(t *testing.T) {
	key := randomBytes(t, 32)
	plaintext := []byte("payload with a random prefixed IV")

	ciphertext, err := Encrypt(key, nil, plaintext)
	require.NoError(t, err)
	// Random IV is prefixed to the ciphertext
	assert.Equal(t, aes.BlockSize+(len(plaintext)/aes.BlockSize+1)*aes.BlockSize, len(ciphertext))

	decrypted, err := Decrypt(key, nil, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptBlockAlignedInput(t *testing.T) {
	key := randomBytes(t, 32)
	iv := randomBytes(t, aes.BlockSize)
	plaintext := randomBytes(t, aes.BlockSize*4)

	ciphertext, err := Encrypt(key, iv, plaintext)
	require.NoError(t, err)
	// A full padding block is added even for aligned input
	assert.Equal(t, len(plaintext)+aes.BlockSize, len(ciphertext))

	decrypted, err := Decrypt(key, iv, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptWrongKey(t *testing.T) {
	key := randomBytes(t, 32)
	plaintext := bytes.Repeat([]byte{0x42}, 100)

	ciphertext, err := Encrypt(key, nil, plaintext)
	require.NoError(t, err)

	wrongKey := randomBytes(t, 32)
	decrypted, err := Decrypt(wrongKey, nil, ciphertext)
	if err == nil {
		// Padding may coincidentally be valid, but the content can't match
		assert.NotEqual(t, plaintext, decrypted)
	}
}

func TestDecryptTooShort(t *testing.T) {
	key := randomBytes(t, 32)
	_, err := Decrypt(key, nil, []byte{1, 2, 3})
	assert.Error(t, err)
}
