// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package waproto

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// ADVSignedDeviceIdentityHMAC is the outer container of the device identity
// sent in the pair-success stanza. The HMAC is keyed with the adv secret.
type ADVSignedDeviceIdentityHMAC struct {
	Details []byte
	HMAC    []byte
}

func (a *ADVSignedDeviceIdentityHMAC) Unmarshal(data []byte) error {
	return walkFields(data, func(num protowire.Number, wireType protowire.Type, _ uint64, value []byte) error {
		if wireType != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			a.Details = value
		case 2:
			a.HMAC = value
		}
		return nil
	})
}

// ADVSignedDeviceIdentity is the signed companion device identity. The account
// signature comes from the phone; the device signature is filled in locally
// before the identity is sent back in the pair-device-sign reply.
type ADVSignedDeviceIdentity struct {
	Details             []byte
	AccountSignatureKey []byte
	AccountSignature    []byte
	DeviceSignature     []byte
}

func (a *ADVSignedDeviceIdentity) Marshal() []byte {
	var data []byte
	data = appendBytes(data, 1, a.Details)
	data = appendBytes(data, 2, a.AccountSignatureKey)
	data = appendBytes(data, 3, a.AccountSignature)
	data = appendBytes(data, 4, a.DeviceSignature)
	return data
}

func (a *ADVSignedDeviceIdentity) Unmarshal(data []byte) error {
	return walkFields(data, func(num protowire.Number, wireType protowire.Type, _ uint64, value []byte) error {
		if wireType != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			a.Details = value
		case 2:
			a.AccountSignatureKey = value
		case 3:
			a.AccountSignature = value
		case 4:
			a.DeviceSignature = value
		}
		return nil
	})
}

// ADVDeviceIdentity is the serialized content of ADVSignedDeviceIdentity.Details.
type ADVDeviceIdentity struct {
	RawID     uint32
	Timestamp uint64
	KeyIndex  uint32
}

func (a *ADVDeviceIdentity) Unmarshal(data []byte) error {
	return walkFields(data, func(num protowire.Number, _ protowire.Type, varint uint64, _ []byte) error {
		switch num {
		case 1:
			a.RawID = uint32(varint)
		case 2:
			a.Timestamp = varint
		case 3:
			a.KeyIndex = uint32(varint)
		}
		return nil
	})
}
