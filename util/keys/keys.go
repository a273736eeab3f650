// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package keys contains a utility struct for elliptic curve keypairs.
package keys

import (
	"crypto/rand"
	"fmt"

	"go.mau.fi/libsignal/ecc"
	"golang.org/x/crypto/curve25519"
)

type KeyPair struct {
	Pub  *[32]byte
	Priv *[32]byte
}

func NewKeyPairFromPrivateKey(priv [32]byte) *KeyPair {
	var kp KeyPair
	kp.Priv = &priv
	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, &priv)
	kp.Pub = &pub
	return &kp
}

func NewKeyPair() *KeyPair {
	var priv [32]byte
	_, err := rand.Read(priv[:])
	if err != nil {
		panic(fmt.Errorf("failed to get random bytes for curve25519 private key: %w", err))
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64
	return NewKeyPairFromPrivateKey(priv)
}

// SharedSecret computes the X25519 shared secret between this keypair's
// private key and the given public key.
func (kp *KeyPair) SharedSecret(pub [32]byte) ([]byte, error) {
	secret, err := curve25519.X25519(kp.Priv[:], pub[:])
	if err != nil {
		return nil, fmt.Errorf("failed to compute shared secret: %w", err)
	}
	return secret, nil
}

func (kp *KeyPair) CreateSignedPreKey(keyID uint32) *PreKey {
	newKey := NewPreKey(keyID)
	newKey.Signature = kp.Sign(&newKey.KeyPair)
	return newKey
}

// Sign signs the public key of the given keypair with this keypair's private key.
//
// The signed message is the key in its "signal public key" form, i.e. prefixed
// with the DJB key type byte (0x05).
func (kp *KeyPair) Sign(keyToSign *KeyPair) *[64]byte {
	pubKeyForSignature := make([]byte, 33)
	pubKeyForSignature[0] = ecc.DjbType
	copy(pubKeyForSignature[1:], keyToSign.Pub[:])

	signature := ecc.CalculateSignature(ecc.NewDjbECPrivateKey(*kp.Priv), pubKeyForSignature)
	return &signature
}

type PreKey struct {
	KeyPair
	KeyID     uint32
	Signature *[64]byte
}

func NewPreKey(keyID uint32) *PreKey {
	return &PreKey{
		KeyPair: *NewKeyPair(),
		KeyID:   keyID,
	}
}
