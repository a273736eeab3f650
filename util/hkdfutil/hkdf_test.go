// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package hkdfutil

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unhex(t *testing.T, str string) []byte {
	t.Helper()
	data, err := hex.DecodeString(str)
	require.NoError(t, err)
	return data
}

// Test case 1 from RFC 5869 appendix A.
func TestSHA256RFC5869Vector(t *testing.T) {
	ikm := bytes.Repeat([]byte{0x0b}, 22)
	salt := unhex(t, "000102030405060708090a0b0c")
	info := unhex(t, "f0f1f2f3f4f5f6f7f8f9")
	expected := unhex(t, "3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865")

	okm := SHA256(ikm, salt, info, 42)
	assert.Equal(t, expected, okm)
}

func TestSHA256NilSaltAndInfo(t *testing.T) {
	out := SHA256([]byte("key"), nil, nil, 64)
	assert.Len(t, out, 64)
	// Expansion is deterministic
	assert.Equal(t, out, SHA256([]byte("key"), nil, nil, 64))
	// Different info strings diverge
	assert.NotEqual(t, out[:32], SHA256([]byte("key"), nil, []byte(InfoImageKeys), 32))
}
