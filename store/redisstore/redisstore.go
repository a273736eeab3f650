// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package redisstore contains a Redis-backed implementation of the interfaces
// in the store package.
//
// Device credentials live in a hash at wawire:device:<id>, prekeys under
// <device>:pre-key/<id>. Unpaired devices get a random UUID namespace until
// the pairing assigns a JID.
package redisstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/profchaos/wawire/proto/waproto"
	"github.com/profchaos/wawire/store"
	"github.com/profchaos/wawire/types"
	"github.com/profchaos/wawire/util/keys"
	waLog "github.com/profchaos/wawire/util/log"
)

const keyPrefix = "wawire:device:"

// Container wraps a Redis client that can hold multiple wawire sessions.
type Container struct {
	rdb *redis.Client
	log waLog.Logger
	ctx context.Context
}

var _ store.DeviceContainer = (*Container)(nil)

// New connects to Redis at the given address and wraps it in a Container.
func New(addr string, log waLog.Logger) (*Container, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	container := NewWithClient(rdb, log)
	if err := rdb.Ping(container.ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return container, nil
}

// NewWithClient wraps an existing Redis client in a Container.
func NewWithClient(rdb *redis.Client, log waLog.Logger) *Container {
	if log == nil {
		log = waLog.Noop
	}
	return &Container{rdb: rdb, log: log, ctx: context.Background()}
}

func deviceKey(device *store.Device) string {
	if device.ID != nil {
		return keyPrefix + device.ID.String()
	}
	return ""
}

// GetDevice finds the device with the given JID. If the device is not found,
// nil is returned instead of an error.
func (c *Container) GetDevice(jid types.JID) (*store.Device, error) {
	data, err := c.rdb.HGetAll(c.ctx, keyPrefix+jid.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get device hash: %w", err)
	} else if len(data) == 0 {
		return nil, nil
	}
	return c.parseDevice(jid, data)
}

// GetAllDevices finds all the devices stored in Redis.
func (c *Container) GetAllDevices() ([]*store.Device, error) {
	devices := make([]*store.Device, 0)
	iter := c.rdb.Scan(c.ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(c.ctx) {
		suffix := iter.Val()[len(keyPrefix):]
		// Skip the prekey/identity subkeys, only device hashes are wanted
		if strings.Contains(suffix, ":pre-key") || strings.Contains(suffix, ":identity/") {
			continue
		}
		jid, err := types.ParseJID(suffix)
		if err != nil {
			continue
		}
		device, err := c.GetDevice(jid)
		if err != nil {
			return nil, err
		} else if device != nil {
			devices = append(devices, device)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan device keys: %w", err)
	}
	return devices, nil
}

// NewDevice creates a new device backed by this Redis container.
func (c *Container) NewDevice() *store.Device {
	device := store.NewDevice()
	device.Log = c.log
	device.Container = c
	inner := newRedisStore(c, keyPrefix+uuid.NewString())
	device.Identities = inner
	device.PreKeys = inner
	return device
}

func get32(data map[string]string, key string) (*[32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(data[key])
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("invalid %s in device hash", key)
	}
	return (*[32]byte)(raw), nil
}

func (c *Container) parseDevice(jid types.JID, data map[string]string) (*store.Device, error) {
	device := &store.Device{Log: c.log, Container: c}
	device.ID = &jid

	noisePriv, err := get32(data, "noiseKey")
	if err != nil {
		return nil, err
	}
	identityPriv, err := get32(data, "identityKey")
	if err != nil {
		return nil, err
	}
	preKeyPriv, err := get32(data, "signedPreKey")
	if err != nil {
		return nil, err
	}
	device.NoiseKey = keys.NewKeyPairFromPrivateKey(*noisePriv)
	device.IdentityKey = keys.NewKeyPairFromPrivateKey(*identityPriv)

	preKeySig, err := base64.StdEncoding.DecodeString(data["signedPreKeySig"])
	if err != nil || len(preKeySig) != 64 {
		return nil, errors.New("invalid signedPreKeySig in device hash")
	}
	preKeyID, err := strconv.ParseUint(data["signedPreKeyID"], 10, 32)
	if err != nil {
		return nil, errors.New("invalid signedPreKeyID in device hash")
	}
	device.SignedPreKey = &keys.PreKey{
		KeyPair:   *keys.NewKeyPairFromPrivateKey(*preKeyPriv),
		KeyID:     uint32(preKeyID),
		Signature: (*[64]byte)(preKeySig),
	}

	regID, err := strconv.ParseUint(data["registrationID"], 10, 32)
	if err != nil {
		return nil, errors.New("invalid registrationID in device hash")
	}
	device.RegistrationID = uint32(regID)
	device.AdvSecretKey, err = base64.StdEncoding.DecodeString(data["advSecretKey"])
	if err != nil {
		return nil, errors.New("invalid advSecretKey in device hash")
	}
	if rawAccount := data["account"]; len(rawAccount) > 0 {
		accountBytes, err := base64.StdEncoding.DecodeString(rawAccount)
		if err != nil {
			return nil, errors.New("invalid account in device hash")
		}
		device.Account = &waproto.ADVSignedDeviceIdentity{}
		if err = device.Account.Unmarshal(accountBytes); err != nil {
			return nil, fmt.Errorf("failed to parse account in device hash: %w", err)
		}
	}
	device.Platform = data["platform"]
	device.BusinessName = data["businessName"]
	device.PushName = data["pushName"]

	inner := newRedisStore(c, deviceKey(device))
	device.Identities = inner
	device.PreKeys = inner
	device.Initialized = true
	return device, nil
}

// PutDevice stores the given device. This is called through Device.Save().
func (c *Container) PutDevice(device *store.Device) error {
	if device.ID == nil {
		return errors.New("device JID must be known before saving")
	}
	fields := map[string]any{
		"noiseKey":        base64.StdEncoding.EncodeToString(device.NoiseKey.Priv[:]),
		"identityKey":     base64.StdEncoding.EncodeToString(device.IdentityKey.Priv[:]),
		"signedPreKey":    base64.StdEncoding.EncodeToString(device.SignedPreKey.Priv[:]),
		"signedPreKeySig": base64.StdEncoding.EncodeToString(device.SignedPreKey.Signature[:]),
		"signedPreKeyID":  strconv.FormatUint(uint64(device.SignedPreKey.KeyID), 10),
		"registrationID":  strconv.FormatUint(uint64(device.RegistrationID), 10),
		"advSecretKey":    base64.StdEncoding.EncodeToString(device.AdvSecretKey),
		"platform":        device.Platform,
		"businessName":    device.BusinessName,
		"pushName":        device.PushName,
	}
	if device.Account != nil {
		fields["account"] = base64.StdEncoding.EncodeToString(device.Account.Marshal())
	}
	err := c.rdb.HSet(c.ctx, deviceKey(device), fields).Err()
	if err != nil {
		return fmt.Errorf("failed to store device hash: %w", err)
	}

	if rs, ok := device.PreKeys.(*redisStore); ok && rs.prefix != deviceKey(device) {
		// The device was created with a placeholder namespace before pairing,
		// move the prekeys over to the JID-based one.
		if err = rs.rename(deviceKey(device)); err != nil {
			return err
		}
	}
	if !device.Initialized {
		inner := newRedisStore(c, deviceKey(device))
		device.Identities = inner
		device.PreKeys = inner
		device.Initialized = true
	}
	return nil
}

// DeleteDevice deletes the given device and all its prekeys and identities.
func (c *Container) DeleteDevice(device *store.Device) error {
	if device.ID == nil {
		return errors.New("device JID must be known before deleting")
	}
	prefix := deviceKey(device)
	iter := c.rdb.Scan(c.ctx, 0, prefix+":*", 0).Iterator()
	for iter.Next(c.ctx) {
		if err := c.rdb.Del(c.ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return c.rdb.Del(c.ctx, prefix).Err()
}
