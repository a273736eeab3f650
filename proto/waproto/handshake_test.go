// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package waproto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeMessageClientHelloRoundTrip(t *testing.T) {
	ephemeral := bytes.Repeat([]byte{0x42}, 32)
	msg := &HandshakeMessage{ClientHello: &HandshakeClientHello{Ephemeral: ephemeral}}
	data, err := msg.Marshal()
	require.NoError(t, err)

	var decoded HandshakeMessage
	require.NoError(t, decoded.Unmarshal(data))
	require.NotNil(t, decoded.ClientHello)
	assert.Equal(t, ephemeral, decoded.ClientHello.Ephemeral)
	assert.Nil(t, decoded.ServerHello)
	assert.Nil(t, decoded.ClientFinish)
}

func TestHandshakeMessageClientFinishRoundTrip(t *testing.T) {
	msg := &HandshakeMessage{ClientFinish: &HandshakeClientFinish{
		Static:  []byte("encrypted static key"),
		Payload: []byte("encrypted client payload"),
	}}
	data, err := msg.Marshal()
	require.NoError(t, err)

	var decoded HandshakeMessage
	require.NoError(t, decoded.Unmarshal(data))
	require.NotNil(t, decoded.ClientFinish)
	assert.Equal(t, msg.ClientFinish.Static, decoded.ClientFinish.Static)
	assert.Equal(t, msg.ClientFinish.Payload, decoded.ClientFinish.Payload)
}

func TestHandshakeMessageServerHello(t *testing.T) {
	msg := &HandshakeMessage{ServerHello: &HandshakeServerHello{
		Ephemeral: bytes.Repeat([]byte{1}, 32),
		Static:    []byte("static ciphertext"),
		Payload:   []byte("certificate ciphertext"),
	}}
	data, err := msg.Marshal()
	require.NoError(t, err)

	var decoded HandshakeMessage
	require.NoError(t, decoded.Unmarshal(data))
	require.NotNil(t, decoded.ServerHello)
	assert.Equal(t, msg.ServerHello.Ephemeral, decoded.ServerHello.Ephemeral)
	assert.Equal(t, msg.ServerHello.Static, decoded.ServerHello.Static)
	assert.Equal(t, msg.ServerHello.Payload, decoded.ServerHello.Payload)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	// field 200 (varint) followed by a clientFinish
	var data []byte
	data = appendUvarint(data, 200, 7)
	finish, err := (&HandshakeMessage{ClientFinish: &HandshakeClientFinish{Static: []byte("s")}}).Marshal()
	require.NoError(t, err)
	data = append(data, finish...)

	var decoded HandshakeMessage
	require.NoError(t, decoded.Unmarshal(data))
	require.NotNil(t, decoded.ClientFinish)
	assert.Equal(t, []byte("s"), decoded.ClientFinish.Static)
}
