// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package waproto contains the protobuf messages that WhatsApp uses during
// the handshake and pairing flows, marshaled by hand with the low-level
// protobuf wire package.
package waproto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendBytes(data []byte, num protowire.Number, value []byte) []byte {
	if value == nil {
		return data
	}
	data = protowire.AppendTag(data, num, protowire.BytesType)
	return protowire.AppendBytes(data, value)
}

func appendString(data []byte, num protowire.Number, value string) []byte {
	if value == "" {
		return data
	}
	data = protowire.AppendTag(data, num, protowire.BytesType)
	return protowire.AppendString(data, value)
}

func appendUvarint(data []byte, num protowire.Number, value uint64) []byte {
	data = protowire.AppendTag(data, num, protowire.VarintType)
	return protowire.AppendVarint(data, value)
}

func appendBool(data []byte, num protowire.Number, value bool) []byte {
	var intVal uint64
	if value {
		intVal = 1
	}
	return appendUvarint(data, num, intVal)
}

// fieldVisitor is called for each top-level field in a message. The value is
// the varint value for varint fields and the contained bytes for bytes fields.
type fieldVisitor func(num protowire.Number, wireType protowire.Type, varint uint64, bytes []byte) error

// walkFields consumes the given message, calling visit for each field.
// Unknown fields are skipped, matching standard protobuf behavior.
func walkFields(data []byte, visit fieldVisitor) error {
	for len(data) > 0 {
		num, wireType, tagLen := protowire.ConsumeTag(data)
		if tagLen < 0 {
			return fmt.Errorf("failed to parse field tag: %w", protowire.ParseError(tagLen))
		}
		data = data[tagLen:]
		switch wireType {
		case protowire.VarintType:
			value, valLen := protowire.ConsumeVarint(data)
			if valLen < 0 {
				return fmt.Errorf("failed to parse varint field %d: %w", num, protowire.ParseError(valLen))
			}
			data = data[valLen:]
			if err := visit(num, wireType, value, nil); err != nil {
				return err
			}
		case protowire.BytesType:
			value, valLen := protowire.ConsumeBytes(data)
			if valLen < 0 {
				return fmt.Errorf("failed to parse bytes field %d: %w", num, protowire.ParseError(valLen))
			}
			data = data[valLen:]
			if err := visit(num, wireType, 0, value); err != nil {
				return err
			}
		default:
			fieldLen := protowire.ConsumeFieldValue(num, wireType, data)
			if fieldLen < 0 {
				return fmt.Errorf("failed to skip field %d: %w", num, protowire.ParseError(fieldLen))
			}
			data = data[fieldLen:]
		}
	}
	return nil
}
