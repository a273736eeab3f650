// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package binary

import (
	"fmt"

	"github.com/profchaos/wawire/binary/token"
	"github.com/profchaos/wawire/types"
)

type binaryEncoder struct {
	data []byte
}

func newEncoder() *binaryEncoder {
	return &binaryEncoder{make([]byte, 0, 1024)}
}

func (w *binaryEncoder) getData() []byte {
	return w.data
}

func (w *binaryEncoder) pushByte(b byte) {
	w.data = append(w.data, b)
}

func (w *binaryEncoder) pushBytes(bytes []byte) {
	w.data = append(w.data, bytes...)
}

func (w *binaryEncoder) pushIntN(value, n int) {
	for i := 0; i < n; i++ {
		curShift := n - i - 1
		w.pushByte(byte((value >> uint(curShift*8)) & 0xFF))
	}
}

func (w *binaryEncoder) pushInt8(value int) {
	w.pushIntN(value, 1)
}

func (w *binaryEncoder) pushInt16(value int) {
	w.pushIntN(value, 2)
}

func (w *binaryEncoder) pushInt20(value int) {
	w.pushBytes([]byte{byte((value >> 16) & 0x0F), byte((value >> 8) & 0xFF), byte(value & 0xFF)})
}

func (w *binaryEncoder) pushInt32(value int) {
	w.pushIntN(value, 4)
}

func (w *binaryEncoder) pushString(value string) {
	w.data = append(w.data, value...)
}

func (w *binaryEncoder) writeByteLength(length int) error {
	if length < 256 {
		w.pushByte(token.Binary8)
		w.pushInt8(length)
	} else if length < (1 << 20) {
		w.pushByte(token.Binary20)
		w.pushInt20(length)
	} else if length < (1 << 31) {
		w.pushByte(token.Binary32)
		w.pushInt32(length)
	} else {
		return fmt.Errorf("%w: %d", ErrStringTooLong, length)
	}
	return nil
}

func (w *binaryEncoder) writeListStart(listSize int) {
	if listSize == 0 {
		w.pushByte(token.ListEmpty)
	} else if listSize < 256 {
		w.pushByte(token.List8)
		w.pushInt8(listSize)
	} else {
		w.pushByte(token.List16)
		w.pushInt16(listSize)
	}
}

func (w *binaryEncoder) writeString(data string) error {
	if index, ok := token.IndexOfSingleToken(data); ok {
		w.pushByte(index)
	} else if dictIndex, index, ok := token.IndexOfDoubleByteToken(data); ok {
		w.pushByte(token.Dictionary0 + dictIndex)
		w.pushByte(index)
	} else if validateNibble(data) {
		w.writePackedBytes(data, token.Nibble8)
	} else if validateHex(data) {
		w.writePackedBytes(data, token.Hex8)
	} else {
		if err := w.writeStringRaw(data); err != nil {
			return err
		}
	}
	return nil
}

func (w *binaryEncoder) writeStringRaw(value string) error {
	if err := w.writeByteLength(len(value)); err != nil {
		return err
	}
	w.pushString(value)
	return nil
}

func (w *binaryEncoder) writeBytes(value []byte) error {
	if err := w.writeByteLength(len(value)); err != nil {
		return err
	}
	w.pushBytes(value)
	return nil
}

func validateNibble(value string) bool {
	if len(value) > token.PackedMax {
		return false
	}
	for _, char := range value {
		if !(char >= '0' && char <= '9') && char != '-' && char != '.' {
			return false
		}
	}
	return len(value) > 0
}

func packNibble(value byte) byte {
	switch {
	case value >= '0' && value <= '9':
		return value - '0'
	case value == '-':
		return 10
	case value == '.':
		return 11
	default:
		panic(fmt.Errorf("invalid string to pack as nibble: %d / '%s'", value, string(value)))
	}
}

func validateHex(value string) bool {
	if len(value) > token.PackedMax {
		return false
	}
	for _, char := range value {
		if !(char >= '0' && char <= '9') && !(char >= 'A' && char <= 'F') {
			return false
		}
	}
	return len(value) > 0
}

func packHex(value byte) byte {
	switch {
	case value >= '0' && value <= '9':
		return value - '0'
	case value >= 'A' && value <= 'F':
		return 10 + value - 'A'
	default:
		panic(fmt.Errorf("invalid string to pack as hex: %d / '%s'", value, string(value)))
	}
}

func (w *binaryEncoder) writePackedBytes(value string, dataType int) {
	w.pushByte(byte(dataType))

	roundedLength := byte((len(value) + 1) / 2)
	if len(value)%2 != 0 {
		roundedLength |= 128
	}
	w.pushByte(roundedLength)

	var packFunction func(byte) byte
	switch dataType {
	case token.Nibble8:
		packFunction = packNibble
	case token.Hex8:
		packFunction = packHex
	default:
		panic(fmt.Errorf("invalid packed byte type %d", dataType))
	}

	for i := 0; i < len(value)/2; i++ {
		w.pushByte(packFunction(value[2*i])<<4 | packFunction(value[2*i+1]))
	}
	if len(value)%2 != 0 {
		w.pushByte(packFunction(value[len(value)-1])<<4 | 0x0F)
	}
}

func (w *binaryEncoder) writeJID(jid types.JID) error {
	if jid.AD {
		w.pushByte(token.ADJID)
		w.pushByte(jid.Agent)
		w.pushByte(jid.Device)
		return w.writeString(jid.User)
	}
	w.pushByte(token.JIDPair)
	if len(jid.User) == 0 {
		w.pushByte(token.ListEmpty)
	} else if err := w.writeString(jid.User); err != nil {
		return err
	}
	return w.writeString(jid.Server)
}

func (w *binaryEncoder) write(data any) error {
	switch typedData := data.(type) {
	case nil:
		w.pushByte(token.ListEmpty)
	case types.JID:
		return w.writeJID(typedData)
	case string:
		return w.writeString(typedData)
	case int:
		return w.writeString(fmt.Sprintf("%d", typedData))
	case int32:
		return w.writeString(fmt.Sprintf("%d", typedData))
	case uint32:
		return w.writeString(fmt.Sprintf("%d", typedData))
	case int64:
		return w.writeString(fmt.Sprintf("%d", typedData))
	case uint64:
		return w.writeString(fmt.Sprintf("%d", typedData))
	case bool:
		return w.writeString(fmt.Sprintf("%t", typedData))
	case []byte:
		return w.writeBytes(typedData)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidType, typedData)
	}
	return nil
}

func countAttributes(attrs Attrs) (count int) {
	for _, val := range attrs {
		if val != "" && val != nil {
			count++
		}
	}
	return
}

func (w *binaryEncoder) writeNode(n Node) error {
	hasContent := 0
	if n.Content != nil {
		hasContent = 1
	}

	w.writeListStart(2*countAttributes(n.Attrs) + 1 + hasContent)
	if err := w.writeString(n.Tag); err != nil {
		return err
	}
	if err := w.writeAttributes(n.Attrs); err != nil {
		return err
	}
	if n.Content != nil {
		return w.writeChildren(n.Content)
	}
	return nil
}

func (w *binaryEncoder) writeAttributes(attributes Attrs) error {
	for key, val := range attributes {
		if val == "" || val == nil {
			continue
		}
		if err := w.writeString(key); err != nil {
			return err
		}
		if err := w.write(val); err != nil {
			return err
		}
	}
	return nil
}

func (w *binaryEncoder) writeChildren(children any) error {
	switch childList := children.(type) {
	case Node:
		return w.writeNode(childList)
	case []Node:
		w.writeListStart(len(childList))
		for _, child := range childList {
			if err := w.writeNode(child); err != nil {
				return err
			}
		}
		return nil
	default:
		return w.write(children)
	}
}
