// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package redisstore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/profchaos/wawire/store"
	"github.com/profchaos/wawire/util/keys"
)

// redisStore is the per-device view into a Container implementing the store
// interfaces for identity keys and prekeys.
type redisStore struct {
	*Container
	prefix string

	preKeyLock sync.Mutex
}

var _ store.IdentityStore = (*redisStore)(nil)
var _ store.PreKeyStore = (*redisStore)(nil)

func newRedisStore(c *Container, prefix string) *redisStore {
	return &redisStore{Container: c, prefix: prefix}
}

func (s *redisStore) identityKey(address string) string {
	return s.prefix + ":identity/" + address
}

func (s *redisStore) preKeyKey(id uint32) string {
	return fmt.Sprintf("%s:pre-key/%d", s.prefix, id)
}

func (s *redisStore) metaKey() string {
	return s.prefix + ":pre-key-meta"
}

// rename moves all data of this store under a new key prefix.
func (s *redisStore) rename(newPrefix string) error {
	s.preKeyLock.Lock()
	defer s.preKeyLock.Unlock()
	iter := s.rdb.Scan(s.ctx, 0, s.prefix+":*", 0).Iterator()
	for iter.Next(s.ctx) {
		oldKey := iter.Val()
		newKey := newPrefix + oldKey[len(s.prefix):]
		if err := s.rdb.Rename(s.ctx, oldKey, newKey).Err(); err != nil {
			return fmt.Errorf("failed to rename %s: %w", oldKey, err)
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	s.prefix = newPrefix
	return nil
}

func (s *redisStore) PutIdentity(address string, key [32]byte) error {
	return s.rdb.Set(s.ctx, s.identityKey(address), base64.StdEncoding.EncodeToString(key[:]), 0).Err()
}

func (s *redisStore) DeleteIdentity(address string) error {
	return s.rdb.Del(s.ctx, s.identityKey(address)).Err()
}

func (s *redisStore) IsTrustedIdentity(address string, key [32]byte) (bool, error) {
	existing, err := s.rdb.Get(s.ctx, s.identityKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		// Trust if not known, it'll be saved automatically later
		return true, nil
	} else if err != nil {
		return false, err
	}
	raw, err := base64.StdEncoding.DecodeString(existing)
	if err != nil || len(raw) != 32 {
		return false, errors.New("invalid identity key in redis")
	}
	return *(*[32]byte)(raw) == key, nil
}

func (s *redisStore) getCounters() (nextID, firstUnuploaded uint32, err error) {
	meta, err := s.rdb.HGetAll(s.ctx, s.metaKey()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get prekey counters: %w", err)
	}
	nextID, firstUnuploaded = 1, 1
	if raw, ok := meta["nextPreKeyID"]; ok {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return 0, 0, errors.New("invalid nextPreKeyID in redis")
		}
		nextID = uint32(parsed)
	}
	if raw, ok := meta["firstUnuploadedPreKeyID"]; ok {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return 0, 0, errors.New("invalid firstUnuploadedPreKeyID in redis")
		}
		firstUnuploaded = uint32(parsed)
	}
	return
}

// genPreKeys generates count prekeys starting at nextID and persists them
// together with the updated counter in one transaction, so an interruption
// can't leave a gap between the counter and the stored keys.
func (s *redisStore) genPreKeys(nextID uint32, count uint32) ([]*keys.PreKey, error) {
	newKeys := make([]*keys.PreKey, count)
	pipe := s.rdb.TxPipeline()
	for i := range newKeys {
		key := keys.NewPreKey(nextID + uint32(i))
		newKeys[i] = key
		pipe.Set(s.ctx, s.preKeyKey(key.KeyID), base64.StdEncoding.EncodeToString(key.Priv[:]), 0)
	}
	pipe.HSet(s.ctx, s.metaKey(), "nextPreKeyID", strconv.FormatUint(uint64(nextID+count), 10))
	if _, err := pipe.Exec(s.ctx); err != nil {
		return nil, fmt.Errorf("failed to store prekeys: %w", err)
	}
	return newKeys, nil
}

func (s *redisStore) GenOnePreKey() (*keys.PreKey, error) {
	s.preKeyLock.Lock()
	defer s.preKeyLock.Unlock()
	nextID, _, err := s.getCounters()
	if err != nil {
		return nil, err
	}
	newKeys, err := s.genPreKeys(nextID, 1)
	if err != nil {
		return nil, err
	}
	err = s.MarkPreKeysAsUploaded(newKeys[0].KeyID)
	if err != nil {
		return nil, err
	}
	return newKeys[0], nil
}

func (s *redisStore) GetOrGenPreKeys(count uint32) ([]*keys.PreKey, error) {
	s.preKeyLock.Lock()
	defer s.preKeyLock.Unlock()
	nextID, firstUnuploaded, err := s.getCounters()
	if err != nil {
		return nil, err
	}

	result := make([]*keys.PreKey, 0, count)
	for id := firstUnuploaded; id < nextID && uint32(len(result)) < count; id++ {
		key, err := s.getPreKey(id)
		if err != nil {
			return nil, err
		} else if key != nil {
			result = append(result, key)
		}
	}
	if missing := count - uint32(len(result)); missing > 0 {
		newKeys, err := s.genPreKeys(nextID, missing)
		if err != nil {
			return nil, err
		}
		result = append(result, newKeys...)
	}
	return result, nil
}

func (s *redisStore) getPreKey(id uint32) (*keys.PreKey, error) {
	raw, err := s.rdb.Get(s.ctx, s.preKeyKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	priv, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(priv) != 32 {
		return nil, errors.New("invalid prekey in redis")
	}
	return &keys.PreKey{
		KeyPair: *keys.NewKeyPairFromPrivateKey(*(*[32]byte)(priv)),
		KeyID:   id,
	}, nil
}

func (s *redisStore) GetPreKey(id uint32) (*keys.PreKey, error) {
	return s.getPreKey(id)
}

func (s *redisStore) RemovePreKey(id uint32) error {
	return s.rdb.Del(s.ctx, s.preKeyKey(id)).Err()
}

func (s *redisStore) MarkPreKeysAsUploaded(upToID uint32) error {
	return s.rdb.HSet(s.ctx, s.metaKey(), "firstUnuploadedPreKeyID", strconv.FormatUint(uint64(upToID)+1, 10)).Err()
}

func (s *redisStore) UploadedPreKeyCount() (count int, err error) {
	_, firstUnuploaded, err := s.getCounters()
	if err != nil {
		return 0, err
	}
	for id := uint32(1); id < firstUnuploaded; id++ {
		exists, err := s.rdb.Exists(s.ctx, s.preKeyKey(id)).Result()
		if err != nil {
			return 0, err
		}
		count += int(exists)
	}
	return
}
