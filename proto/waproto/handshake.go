// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package waproto

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// HandshakeMessage is the frame payload exchanged during the Noise handshake.
// Exactly one of the variants is set.
type HandshakeMessage struct {
	ClientHello  *HandshakeClientHello
	ServerHello  *HandshakeServerHello
	ClientFinish *HandshakeClientFinish
}

type HandshakeClientHello struct {
	Ephemeral []byte
	Static    []byte
	Payload   []byte
}

type HandshakeServerHello struct {
	Ephemeral []byte
	Static    []byte
	Payload   []byte
}

type HandshakeClientFinish struct {
	Static  []byte
	Payload []byte
}

func marshalHandshakeParts(ephemeral, static, payload []byte) []byte {
	var data []byte
	data = appendBytes(data, 1, ephemeral)
	data = appendBytes(data, 2, static)
	data = appendBytes(data, 3, payload)
	return data
}

func (hm *HandshakeMessage) Marshal() ([]byte, error) {
	var data []byte
	if hm.ClientHello != nil {
		data = appendBytes(data, 2, marshalHandshakeParts(hm.ClientHello.Ephemeral, hm.ClientHello.Static, hm.ClientHello.Payload))
	}
	if hm.ServerHello != nil {
		data = appendBytes(data, 3, marshalHandshakeParts(hm.ServerHello.Ephemeral, hm.ServerHello.Static, hm.ServerHello.Payload))
	}
	if hm.ClientFinish != nil {
		var finish []byte
		finish = appendBytes(finish, 1, hm.ClientFinish.Static)
		finish = appendBytes(finish, 2, hm.ClientFinish.Payload)
		data = appendBytes(data, 4, finish)
	}
	return data, nil
}

func unmarshalHandshakeParts(data []byte) (ephemeral, static, payload []byte, err error) {
	err = walkFields(data, func(num protowire.Number, wireType protowire.Type, _ uint64, value []byte) error {
		if wireType != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			ephemeral = value
		case 2:
			static = value
		case 3:
			payload = value
		}
		return nil
	})
	return
}

func (hm *HandshakeMessage) Unmarshal(data []byte) error {
	return walkFields(data, func(num protowire.Number, wireType protowire.Type, _ uint64, value []byte) error {
		if wireType != protowire.BytesType {
			return nil
		}
		switch num {
		case 2:
			ephemeral, static, payload, err := unmarshalHandshakeParts(value)
			if err != nil {
				return err
			}
			hm.ClientHello = &HandshakeClientHello{Ephemeral: ephemeral, Static: static, Payload: payload}
		case 3:
			ephemeral, static, payload, err := unmarshalHandshakeParts(value)
			if err != nil {
				return err
			}
			hm.ServerHello = &HandshakeServerHello{Ephemeral: ephemeral, Static: static, Payload: payload}
		case 4:
			finish := &HandshakeClientFinish{}
			err := walkFields(value, func(num protowire.Number, wireType protowire.Type, _ uint64, value []byte) error {
				if wireType != protowire.BytesType {
					return nil
				}
				switch num {
				case 1:
					finish.Static = value
				case 2:
					finish.Payload = value
				}
				return nil
			})
			if err != nil {
				return err
			}
			hm.ClientFinish = finish
		}
		return nil
	})
}

// NoiseCertificate is the certificate the server sends in the encrypted
// payload of its handshake response.
type NoiseCertificate struct {
	Details   []byte
	Signature []byte
}

func (nc *NoiseCertificate) Unmarshal(data []byte) error {
	return walkFields(data, func(num protowire.Number, wireType protowire.Type, _ uint64, value []byte) error {
		if wireType != protowire.BytesType {
			return nil
		}
		switch num {
		case 1:
			nc.Details = value
		case 2:
			nc.Signature = value
		}
		return nil
	})
}

// NoiseCertificateDetails is the serialized content of NoiseCertificate.Details.
type NoiseCertificateDetails struct {
	Serial  uint32
	Issuer  string
	Expires uint64
	Subject string
	Key     []byte
}

func (ncd *NoiseCertificateDetails) Unmarshal(data []byte) error {
	return walkFields(data, func(num protowire.Number, wireType protowire.Type, varint uint64, value []byte) error {
		switch num {
		case 1:
			ncd.Serial = uint32(varint)
		case 2:
			ncd.Issuer = string(value)
		case 3:
			ncd.Expires = varint
		case 4:
			ncd.Subject = string(value)
		case 5:
			ncd.Key = value
		}
		return nil
	})
}
