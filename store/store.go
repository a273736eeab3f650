// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package store contains the Device credential struct and the interfaces for
// persisting it. The core never assumes a backing medium: anything that
// implements the interfaces can be plugged in.
package store

import (
	"encoding/binary"

	"go.mau.fi/util/random"

	"github.com/profchaos/wawire/proto/waproto"
	"github.com/profchaos/wawire/types"
	"github.com/profchaos/wawire/util/keys"
	waLog "github.com/profchaos/wawire/util/log"
)

// IdentityStore stores the Signal identity keys of other devices.
type IdentityStore interface {
	PutIdentity(address string, key [32]byte) error
	DeleteIdentity(address string) error
	IsTrustedIdentity(address string, key [32]byte) (bool, error)
}

// PreKeyStore stores one-time prekeys. Keys are identified by a 24-bit
// incrementing ID; the storage layout is up to the backend (the Redis one
// uses pre-key/<id> keys).
type PreKeyStore interface {
	GetOrGenPreKeys(count uint32) ([]*keys.PreKey, error)
	GenOnePreKey() (*keys.PreKey, error)
	GetPreKey(id uint32) (*keys.PreKey, error)
	RemovePreKey(id uint32) error
	MarkPreKeysAsUploaded(upToID uint32) error
	UploadedPreKeyCount() (int, error)
}

// DeviceContainer is the interface for the storage that holds Device entries.
type DeviceContainer interface {
	PutDevice(device *Device) error
	DeleteDevice(device *Device) error
}

// Device contains the credentials of one paired companion device along with
// handles to the stores for related data.
type Device struct {
	Log waLog.Logger

	NoiseKey       *keys.KeyPair
	IdentityKey    *keys.KeyPair
	SignedPreKey   *keys.PreKey
	RegistrationID uint32
	AdvSecretKey   []byte

	ID           *types.JID
	Account      *waproto.ADVSignedDeviceIdentity
	Platform     string
	BusinessName string
	PushName     string

	Initialized bool
	Identities  IdentityStore
	PreKeys     PreKeyStore
	Container   DeviceContainer
}

// Save persists the device credentials through the container.
func (device *Device) Save() error {
	return device.Container.PutDevice(device)
}

// Delete removes the device and its related data from the container.
func (device *Device) Delete() error {
	err := device.Container.DeleteDevice(device)
	if err != nil {
		return err
	}
	device.ID = nil
	return nil
}

// NewDevice creates a fresh unregistered Device with new keys. The container
// and related stores must be filled in by the caller.
func NewDevice() *Device {
	device := &Device{
		Log:          waLog.Noop,
		NoiseKey:     keys.NewKeyPair(),
		IdentityKey:  keys.NewKeyPair(),
		AdvSecretKey: random.Bytes(32),
	}
	device.SignedPreKey = device.IdentityKey.CreateSignedPreKey(1)
	device.RegistrationID = binary.BigEndian.Uint32(random.Bytes(4))
	return device
}
