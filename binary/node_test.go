// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package binary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profchaos/wawire/binary/token"
	"github.com/profchaos/wawire/types"
)

func roundTrip(t *testing.T, node Node) *Node {
	t.Helper()
	data, err := Marshal(node)
	require.NoError(t, err)
	payload, err := Unpack(data)
	require.NoError(t, err)
	decoded, err := Unmarshal(payload)
	require.NoError(t, err)
	return decoded
}

func TestMarshalMinimalNode(t *testing.T) {
	node := Node{Tag: "ping"}
	data, err := Marshal(node)
	require.NoError(t, err)

	pingToken, ok := token.IndexOfSingleToken("ping")
	require.True(t, ok)
	// flag byte, list header with size 1, dictionary token for the tag
	assert.Equal(t, []byte{0, token.List8, 1, pingToken}, data)

	decoded := roundTrip(t, node)
	assert.Equal(t, node, *decoded)
}

func TestMarshalInfoQuery(t *testing.T) {
	node := Node{
		Tag: "iq",
		Attrs: Attrs{
			"to":    types.ServerJID,
			"type":  "get",
			"id":    "abc.1",
			"xmlns": "w:p",
		},
		Content: []Node{{Tag: "ping"}},
	}
	data, err := Marshal(node)
	require.NoError(t, err)

	iqToken, ok := token.IndexOfSingleToken("iq")
	require.True(t, ok)
	// list size is 1 tag + 2 per attribute + 1 content
	assert.Equal(t, byte(0), data[0])
	assert.Equal(t, byte(token.List8), data[1])
	assert.Equal(t, byte(10), data[2])
	assert.Equal(t, iqToken, data[3])

	decoded := roundTrip(t, node)
	assert.Equal(t, node, *decoded)
}

func TestMarshalDictionaryTokens(t *testing.T) {
	// Strings in the dictionary must be emitted as single-byte tokens.
	for _, tok := range []string{"iq", "type", "get", "xmlns", "s.whatsapp.net", "pair-success"} {
		node := Node{Tag: tok}
		data, err := Marshal(node)
		require.NoError(t, err)
		require.Len(t, data, 4, "tag %q should encode as a dictionary reference", tok)
	}
}

func TestMarshalJIDs(t *testing.T) {
	node := Node{
		Tag: "presence",
		Attrs: Attrs{
			"from": types.NewJID("15551234567", types.DefaultUserServer),
			"to":   types.NewADJID("15557654321", 0, 13),
		},
	}
	decoded := roundTrip(t, node)
	assert.Equal(t, node, *decoded)
}

func TestMarshalPackedStrings(t *testing.T) {
	cases := []string{
		"1555123456",     // nibble, even length
		"155512345",      // nibble, odd length
		"123-456.789",    // nibble with separators
		"0123456789ABCDEF", // hex
		"ABCDEF1",        // hex, odd length
	}
	for _, val := range cases {
		node := Node{Tag: "iq", Attrs: Attrs{"id": val}}
		decoded := roundTrip(t, node)
		assert.Equal(t, node, *decoded, "packed string %q should survive a round trip", val)
	}
}

func TestMarshalByteContent(t *testing.T) {
	node := Node{
		Tag:     "enc",
		Attrs:   Attrs{"type": "msg"},
		Content: []byte{0x00, 0x01, 0xFE, 0xFF},
	}
	decoded := roundTrip(t, node)
	assert.Equal(t, node, *decoded)
}

func TestMarshalLongString(t *testing.T) {
	long := strings.Repeat("x", 1000)
	node := Node{Tag: "iq", Attrs: Attrs{"id": long}}
	decoded := roundTrip(t, node)
	assert.Equal(t, node, *decoded)
}

func TestMarshalNestedNodes(t *testing.T) {
	node := Node{
		Tag:   "iq",
		Attrs: Attrs{"type": "result"},
		Content: []Node{{
			Tag: "list",
			Content: []Node{
				{Tag: "key", Content: []Node{{Tag: "id", Content: []byte{0, 0, 1}}}},
				{Tag: "key", Content: []Node{{Tag: "id", Content: []byte{0, 0, 2}}}},
			},
		}},
	}
	decoded := roundTrip(t, node)
	assert.Equal(t, node, *decoded)
}

func TestUnmarshalTrailingData(t *testing.T) {
	data, err := MarshalInner(Node{Tag: "ping"})
	require.NoError(t, err)
	data = append(data, 0x00)
	_, err = Unmarshal(data)
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestUnmarshalInvalidToken(t *testing.T) {
	// A list of one node whose tag is an out-of-range single byte token
	data := []byte{token.List8, 1, 235}
	_, err := Unmarshal(data)
	assert.Error(t, err)
}

func TestUnmarshalEmpty(t *testing.T) {
	_, err := Unmarshal([]byte{})
	assert.Error(t, err)
}
