// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package sqlstore contains a SQL-backed implementation of the interfaces in the store package.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/profchaos/wawire/proto/waproto"
	"github.com/profchaos/wawire/store"
	"github.com/profchaos/wawire/types"
	"github.com/profchaos/wawire/util/keys"
	waLog "github.com/profchaos/wawire/util/log"
)

// Container is a wrapper for a SQL database that can contain multiple wawire sessions.
type Container struct {
	db  *sql.DB
	log waLog.Logger
}

var _ store.DeviceContainer = (*Container)(nil)

// New connects to the given SQL database and wraps it in a Container.
//
// Only the pgx driver is bundled; other database/sql drivers work as long as
// they understand $n placeholders.
func New(driverName, address string, log waLog.Logger) (*Container, error) {
	db, err := sql.Open(driverName, address)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	container := NewWithDB(db, log)
	err = container.Upgrade()
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade database: %w", err)
	}
	return container, nil
}

// NewWithDB wraps an existing SQL connection in a Container.
//
// Remember to call Upgrade to ensure the database schema is up to date.
func NewWithDB(db *sql.DB, log waLog.Logger) *Container {
	if log == nil {
		log = waLog.Noop
	}
	return &Container{db: db, log: log}
}

// Upgrade creates the required tables if they don't exist yet.
func (c *Container) Upgrade() error {
	for _, query := range []string{createDeviceTableQuery, createIdentityTableQuery, createPreKeyTableQuery} {
		if _, err := c.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

const (
	createDeviceTableQuery = `
		CREATE TABLE IF NOT EXISTS wawire_device (
			jid TEXT PRIMARY KEY,

			registration_id BIGINT NOT NULL CHECK ( registration_id >= 0 AND registration_id < 4294967296 ),

			noise_key    bytea NOT NULL CHECK ( length(noise_key) = 32 ),
			identity_key bytea NOT NULL CHECK ( length(identity_key) = 32 ),

			signed_pre_key     bytea   NOT NULL CHECK ( length(signed_pre_key) = 32 ),
			signed_pre_key_id  INTEGER NOT NULL CHECK ( signed_pre_key_id >= 0 AND signed_pre_key_id < 16777216 ),
			signed_pre_key_sig bytea   NOT NULL CHECK ( length(signed_pre_key_sig) = 64 ),

			adv_secret_key bytea NOT NULL CHECK ( length(adv_secret_key) = 32 ),
			adv_account    bytea,

			platform      TEXT NOT NULL DEFAULT '',
			business_name TEXT NOT NULL DEFAULT '',
			push_name     TEXT NOT NULL DEFAULT ''
		)
	`
	createIdentityTableQuery = `
		CREATE TABLE IF NOT EXISTS wawire_identity_keys (
			our_jid  TEXT,
			their_id TEXT,
			identity bytea NOT NULL CHECK ( length(identity) = 32 ),

			PRIMARY KEY (our_jid, their_id),
			FOREIGN KEY (our_jid) REFERENCES wawire_device(jid) ON DELETE CASCADE ON UPDATE CASCADE
		)
	`
	createPreKeyTableQuery = `
		CREATE TABLE IF NOT EXISTS wawire_pre_keys (
			jid      TEXT,
			key_id   INTEGER CHECK ( key_id >= 0 AND key_id < 16777216 ),
			key      bytea NOT NULL CHECK ( length(key) = 32 ),
			uploaded BOOLEAN NOT NULL,

			PRIMARY KEY (jid, key_id),
			FOREIGN KEY (jid) REFERENCES wawire_device(jid) ON DELETE CASCADE ON UPDATE CASCADE
		)
	`
)

const (
	getAllDevicesQuery = `
		SELECT jid, registration_id, noise_key, identity_key,
		       signed_pre_key, signed_pre_key_id, signed_pre_key_sig,
		       adv_secret_key, adv_account, platform, business_name, push_name
		FROM wawire_device
	`
	getDeviceQuery    = getAllDevicesQuery + " WHERE jid=$1"
	insertDeviceQuery = `
		INSERT INTO wawire_device (jid, registration_id, noise_key, identity_key,
		                           signed_pre_key, signed_pre_key_id, signed_pre_key_sig,
		                           adv_secret_key, adv_account, platform, business_name, push_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (jid) DO UPDATE
		    SET platform=excluded.platform, business_name=excluded.business_name, push_name=excluded.push_name,
		        adv_account=excluded.adv_account
	`
	deleteDeviceQuery = `DELETE FROM wawire_device WHERE jid=$1`
)

var ErrDeviceIDMustBeSet = errors.New("device JID must be known before accessing database")

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	// 40001 = serialization_failure, 40P01 = deadlock_detected
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func (c *Container) scanDevice(row scannable) (*store.Device, error) {
	var device store.Device
	device.Log = c.log
	device.SignedPreKey = &keys.PreKey{}
	var jid string
	var noiseKey, identityKey, preKey, preKeySig []byte
	var account []byte

	err := row.Scan(
		&jid, &device.RegistrationID, &noiseKey, &identityKey,
		&preKey, &device.SignedPreKey.KeyID, &preKeySig,
		&device.AdvSecretKey, &account, &device.Platform, &device.BusinessName, &device.PushName)
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	parsedJID, err := types.ParseJID(jid)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JID in database: %w", err)
	}
	device.ID = &parsedJID
	device.NoiseKey = keys.NewKeyPairFromPrivateKey(*(*[32]byte)(noiseKey))
	device.IdentityKey = keys.NewKeyPairFromPrivateKey(*(*[32]byte)(identityKey))
	device.SignedPreKey.KeyPair = *keys.NewKeyPairFromPrivateKey(*(*[32]byte)(preKey))
	device.SignedPreKey.Signature = (*[64]byte)(preKeySig)
	if len(account) > 0 {
		device.Account = &waproto.ADVSignedDeviceIdentity{}
		err = device.Account.Unmarshal(account)
		if err != nil {
			return nil, fmt.Errorf("failed to parse account in database: %w", err)
		}
	}

	innerStore := NewSQLStore(c, parsedJID)
	device.Identities = innerStore
	device.PreKeys = innerStore
	device.Container = c
	device.Initialized = true

	return &device, nil
}

type scannable interface {
	Scan(dest ...any) error
}

// GetAllDevices finds all the devices in the database.
func (c *Container) GetAllDevices() ([]*store.Device, error) {
	rows, err := c.db.Query(getAllDevicesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()
	sessions := make([]*store.Device, 0)
	for rows.Next() {
		device, err := c.scanDevice(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, device)
	}
	return sessions, rows.Err()
}

// GetFirstDevice is a convenience method for getting the first device in the
// database. If there are no devices, a fresh device is created.
func (c *Container) GetFirstDevice() (*store.Device, error) {
	devices, err := c.GetAllDevices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return c.NewDevice(), nil
	}
	return devices[0], nil
}

// GetDevice finds the device with the specified JID in the database.
//
// If the device is not found, nil is returned instead of an error.
func (c *Container) GetDevice(jid types.JID) (*store.Device, error) {
	row := c.db.QueryRow(getDeviceQuery, jid.String())
	device, err := c.scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return device, err
}

// NewDevice creates a new device in this database.
//
// No data is actually stored before Save is called. However, the pairing
// process will automatically call Save after a successful pairing, so you
// most likely don't need to call it yourself.
func (c *Container) NewDevice() *store.Device {
	device := store.NewDevice()
	device.Log = c.log
	device.Container = c
	return device
}

// PutDevice stores the given device in this database. This is called through
// Device.Save() and usually doesn't need to be called manually.
func (c *Container) PutDevice(device *store.Device) error {
	if device.ID == nil {
		return ErrDeviceIDMustBeSet
	}
	var account []byte
	if device.Account != nil {
		account = device.Account.Marshal()
	}
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		_, err = c.db.Exec(insertDeviceQuery,
			device.ID.String(), device.RegistrationID, device.NoiseKey.Priv[:], device.IdentityKey.Priv[:],
			device.SignedPreKey.Priv[:], device.SignedPreKey.KeyID, device.SignedPreKey.Signature[:],
			device.AdvSecretKey, account, device.Platform, device.BusinessName, device.PushName)
		if !isRetryableError(err) {
			break
		}
		c.log.Warnf("Retrying device upsert after retryable error: %v", err)
	}
	if err != nil {
		return err
	}

	if !device.Initialized {
		innerStore := NewSQLStore(c, *device.ID)
		device.Identities = innerStore
		device.PreKeys = innerStore
		device.Initialized = true
	}
	return nil
}

// DeleteDevice deletes the given device from this database.
func (c *Container) DeleteDevice(device *store.Device) error {
	if device.ID == nil {
		return ErrDeviceIDMustBeSet
	}
	_, err := c.db.Exec(deleteDeviceQuery, device.ID.String())
	return err
}
