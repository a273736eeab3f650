// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profchaos/wawire/types"
)

func TestParseVersion(t *testing.T) {
	parsed, err := ParseVersion("2.3000.101")
	require.NoError(t, err)
	assert.Equal(t, WAVersionContainer{2, 3000, 101, 0}, parsed)
	assert.Equal(t, "2.3000.101", parsed.String())

	parsed, err = ParseVersion("2.3000.101.4")
	require.NoError(t, err)
	assert.Equal(t, WAVersionContainer{2, 3000, 101, 4}, parsed)
	assert.Equal(t, "2.3000.101.4", parsed.String())

	_, err = ParseVersion("2.3000")
	assert.Error(t, err)
	_, err = ParseVersion("2.x.3")
	assert.Error(t, err)
}

func TestVersionLessThan(t *testing.T) {
	assert.True(t, WAVersionContainer{2, 3000, 1}.LessThan(WAVersionContainer{2, 3000, 2}))
	assert.True(t, WAVersionContainer{2, 2999, 9}.LessThan(WAVersionContainer{2, 3000, 0}))
	assert.False(t, WAVersionContainer{2, 3000, 1}.LessThan(WAVersionContainer{2, 3000, 1}))
}

func TestGetClientPayloadVariant(t *testing.T) {
	device := NewMemoryDevice()

	// Unregistered device sends the pairing registration data
	payload := device.GetClientPayload()
	require.NotNil(t, payload.DevicePairingData)
	assert.False(t, payload.Passive)
	assert.EqualValues(t, 0, payload.Username)
	assert.Equal(t, device.IdentityKey.Pub[:], payload.DevicePairingData.EIdent)
	assert.Equal(t, device.SignedPreKey.Pub[:], payload.DevicePairingData.ESkeyVal)
	// The prekey ID is sent as the low 3 bytes of the big-endian uint32
	assert.Len(t, payload.DevicePairingData.ESkeyID, 3)

	// Registered device sends the login variant
	jid := types.NewADJID("15551234567", 0, 4)
	device.ID = &jid
	payload = device.GetClientPayload()
	assert.Nil(t, payload.DevicePairingData)
	assert.True(t, payload.Passive)
	assert.EqualValues(t, 15551234567, payload.Username)
	assert.EqualValues(t, 4, payload.Device)

	data, err := payload.Marshal()
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestNewDeviceHasCredentials(t *testing.T) {
	device := NewDevice()
	require.NotNil(t, device.NoiseKey)
	require.NotNil(t, device.IdentityKey)
	require.NotNil(t, device.SignedPreKey)
	assert.NotNil(t, device.SignedPreKey.Signature)
	assert.Len(t, device.AdvSecretKey, 32)
	assert.Nil(t, device.ID)
}
