// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"sync"

	"github.com/profchaos/wawire/util/keys"
)

// MemoryStore is an in-memory implementation of all the store interfaces.
// Nothing survives a restart; it's meant for tests and throwaway sessions.
type MemoryStore struct {
	lock sync.Mutex

	identities map[string][32]byte

	preKeys              map[uint32]*keys.PreKey
	nextPreKeyID         uint32
	firstUnuploadedKeyID uint32
}

var _ IdentityStore = (*MemoryStore)(nil)
var _ PreKeyStore = (*MemoryStore)(nil)
var _ DeviceContainer = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities:           make(map[string][32]byte),
		preKeys:              make(map[uint32]*keys.PreKey),
		nextPreKeyID:         1,
		firstUnuploadedKeyID: 1,
	}
}

// NewMemoryDevice returns a fresh device backed by a new MemoryStore.
func NewMemoryDevice() *Device {
	mem := NewMemoryStore()
	device := NewDevice()
	device.Identities = mem
	device.PreKeys = mem
	device.Container = mem
	return device
}

func (ms *MemoryStore) PutIdentity(address string, key [32]byte) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.identities[address] = key
	return nil
}

func (ms *MemoryStore) DeleteIdentity(address string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	delete(ms.identities, address)
	return nil
}

func (ms *MemoryStore) IsTrustedIdentity(address string, key [32]byte) (bool, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	existing, ok := ms.identities[address]
	if !ok {
		// Trust if not known, it'll be saved automatically later
		return true, nil
	}
	return existing == key, nil
}

func (ms *MemoryStore) genOnePreKeyLocked() *keys.PreKey {
	key := keys.NewPreKey(ms.nextPreKeyID)
	ms.preKeys[key.KeyID] = key
	ms.nextPreKeyID++
	return key
}

func (ms *MemoryStore) GenOnePreKey() (*keys.PreKey, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	return ms.genOnePreKeyLocked(), nil
}

func (ms *MemoryStore) GetOrGenPreKeys(count uint32) ([]*keys.PreKey, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	result := make([]*keys.PreKey, 0, count)
	for id := ms.firstUnuploadedKeyID; id < ms.nextPreKeyID && uint32(len(result)) < count; id++ {
		if key, ok := ms.preKeys[id]; ok {
			result = append(result, key)
		}
	}
	for uint32(len(result)) < count {
		result = append(result, ms.genOnePreKeyLocked())
	}
	return result, nil
}

func (ms *MemoryStore) GetPreKey(id uint32) (*keys.PreKey, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	key, ok := ms.preKeys[id]
	if !ok {
		return nil, nil
	}
	return key, nil
}

func (ms *MemoryStore) RemovePreKey(id uint32) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	delete(ms.preKeys, id)
	return nil
}

func (ms *MemoryStore) MarkPreKeysAsUploaded(upToID uint32) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	if upToID >= ms.firstUnuploadedKeyID {
		ms.firstUnuploadedKeyID = upToID + 1
	}
	return nil
}

func (ms *MemoryStore) UploadedPreKeyCount() (int, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	var count int
	for id := range ms.preKeys {
		if id < ms.firstUnuploadedKeyID {
			count++
		}
	}
	return count, nil
}

func (ms *MemoryStore) PutDevice(*Device) error {
	return nil
}

func (ms *MemoryStore) DeleteDevice(*Device) error {
	return nil
}
