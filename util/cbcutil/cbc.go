// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cbcutil simplifies the usage of AES-256-CBC with PKCS#7 padding.
//
// Two layouts are supported: when the IV is supplied by the caller it is not
// stored in the output, and when it is nil a random 16-byte IV is generated
// and prefixed to the ciphertext.
package cbcutil

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// Encrypt encrypts plaintext with the given key and an optional initialization vector.
//
// If iv is nil, a random IV is generated and prefixed to the returned ciphertext.
func Encrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	paddingLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+paddingLen)
	copy(padded, plaintext)
	copy(padded[len(plaintext):], bytes.Repeat([]byte{byte(paddingLen)}, paddingLen))

	var ciphertext []byte
	if iv == nil {
		ciphertext = make([]byte, aes.BlockSize+len(padded))
		iv = ciphertext[:aes.BlockSize]
		if _, err = io.ReadFull(rand.Reader, iv); err != nil {
			return nil, err
		}
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext[aes.BlockSize:], padded)
	} else {
		ciphertext = make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	}

	return ciphertext, nil
}

// Decrypt decrypts a ciphertext produced by Encrypt.
//
// If iv is nil, the first 16 bytes of the ciphertext are taken as the IV.
func Decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if iv == nil {
		if len(ciphertext) < aes.BlockSize {
			return nil, fmt.Errorf("ciphertext is shorter than block size: %d / %d", len(ciphertext), aes.BlockSize)
		}
		iv = ciphertext[:aes.BlockSize]
		ciphertext = ciphertext[aes.BlockSize:]
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of the block size: %d / %d", len(ciphertext), aes.BlockSize)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return unpad(plaintext)
}

func unpad(src []byte) ([]byte, error) {
	length := len(src)
	padLen := int(src[length-1])

	if padLen == 0 || padLen > length || padLen > aes.BlockSize {
		return nil, fmt.Errorf("padding is invalid: %d / %d", padLen, length)
	}

	return src[:length-padLen], nil
}
