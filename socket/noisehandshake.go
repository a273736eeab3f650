// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package socket

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"sync/atomic"

	"golang.org/x/crypto/curve25519"

	"github.com/profchaos/wawire/util/hkdfutil"
)

// NoiseHandshake is the transcript state of a Noise XX handshake: the running
// hash, the chaining salt and the current intermediate cipher.
type NoiseHandshake struct {
	hash    []byte
	salt    []byte
	key     cipher.AEAD
	counter uint32
}

func NewNoiseHandshake() *NoiseHandshake {
	return &NoiseHandshake{}
}

func newCipher(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm, nil
}

func sha256Slice(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// Start initializes the handshake state with the given pattern name and mixes
// in the connection header (the prologue).
func (nh *NoiseHandshake) Start(pattern string, header []byte) {
	data := []byte(pattern)
	if len(data) == 32 {
		nh.hash = data
	} else {
		nh.hash = sha256Slice(data)
	}
	nh.salt = nh.hash
	var err error
	nh.key, err = newCipher(nh.hash)
	if err != nil {
		// The initial key is a SHA-256 hash, so this can never fail
		panic(err)
	}
	nh.Authenticate(header)
}

// Authenticate mixes the given data into the transcript hash.
func (nh *NoiseHandshake) Authenticate(data []byte) {
	nh.hash = sha256Slice(append(nh.hash, data...))
}

func (nh *NoiseHandshake) postIncrementCounter() uint32 {
	count := atomic.AddUint32(&nh.counter, 1)
	return count - 1
}

// Encrypt encrypts the given plaintext under the current intermediate key,
// using the transcript hash as associated data, and mixes the ciphertext back
// into the transcript.
func (nh *NoiseHandshake) Encrypt(plaintext []byte) []byte {
	ciphertext := nh.key.Seal(nil, generateIV(nh.postIncrementCounter()), plaintext, nh.hash)
	nh.Authenticate(ciphertext)
	return ciphertext
}

// Decrypt decrypts the given ciphertext under the current intermediate key and
// mixes the ciphertext into the transcript on success.
func (nh *NoiseHandshake) Decrypt(ciphertext []byte) ([]byte, error) {
	plaintext, err := nh.key.Open(nil, generateIV(nh.postIncrementCounter()), ciphertext, nh.hash)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt handshake message: %w", err)
	}
	nh.Authenticate(ciphertext)
	return plaintext, nil
}

// MixSharedSecretIntoKey computes the X25519 shared secret of the given keys
// and mixes it into the chaining key.
func (nh *NoiseHandshake) MixSharedSecretIntoKey(priv, pub [32]byte) error {
	secret, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return fmt.Errorf("failed to do x25519 scalar multiplication: %w", err)
	}
	return nh.MixIntoKey(secret)
}

// MixIntoKey splits HKDF(salt, data) into a new salt and intermediate key and
// resets the nonce counter.
func (nh *NoiseHandshake) MixIntoKey(data []byte) error {
	nh.counter = 0
	write, read, err := nh.extractAndExpand(nh.salt, data)
	if err != nil {
		return fmt.Errorf("failed to extract and expand: %w", err)
	}
	nh.salt = write
	nh.key, err = newCipher(read)
	if err != nil {
		return fmt.Errorf("failed to create new cipher: %w", err)
	}
	return nil
}

// Finish derives the send and receive cipher states from the final chaining
// key and returns a NoiseSocket wrapping the given frame socket.
func (nh *NoiseHandshake) Finish(fs *FrameSocket, frameHandler FrameHandler, disconnectHandler DisconnectHandler) (*NoiseSocket, error) {
	write, read, err := nh.extractAndExpand(nh.salt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to extract and expand: %w", err)
	}
	writeKey, err := newCipher(write)
	if err != nil {
		return nil, fmt.Errorf("failed to create write cipher: %w", err)
	}
	readKey, err := newCipher(read)
	if err != nil {
		return nil, fmt.Errorf("failed to create read cipher: %w", err)
	}
	return newNoiseSocket(fs, writeKey, readKey, frameHandler, disconnectHandler)
}

func (nh *NoiseHandshake) extractAndExpand(salt, data []byte) (write []byte, read []byte, err error) {
	expanded := hkdfutil.SHA256(data, salt, nil, 64)
	return expanded[:32], expanded[32:], nil
}
