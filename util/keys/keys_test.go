// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/libsignal/ecc"
)

func TestSharedSecretAgreement(t *testing.T) {
	alice := NewKeyPair()
	bob := NewKeyPair()

	aliceShared, err := alice.SharedSecret(*bob.Pub)
	require.NoError(t, err)
	bobShared, err := bob.SharedSecret(*alice.Pub)
	require.NoError(t, err)
	assert.Equal(t, aliceShared, bobShared)
}

func TestKeyPairFromPrivateKeyDeterministic(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i)
	}
	kp1 := NewKeyPairFromPrivateKey(seed)
	kp2 := NewKeyPairFromPrivateKey(seed)
	assert.Equal(t, kp1.Pub, kp2.Pub)
}

func TestSignedPreKeySignature(t *testing.T) {
	identity := NewKeyPair()
	spk := identity.CreateSignedPreKey(1)
	require.NotNil(t, spk.Signature)
	assert.EqualValues(t, 1, spk.KeyID)

	// The signature covers the prekey public key in signal form (0x05 prefix)
	message := append([]byte{ecc.DjbType}, spk.Pub[:]...)
	valid := ecc.VerifySignature(ecc.NewDjbECPublicKey(*identity.Pub), message, *spk.Signature)
	assert.True(t, valid)

	// A signature over a different key must not verify
	other := NewKeyPair()
	otherMessage := append([]byte{ecc.DjbType}, other.Pub[:]...)
	assert.False(t, ecc.VerifySignature(ecc.NewDjbECPublicKey(*identity.Pub), otherMessage, *spk.Signature))
}
