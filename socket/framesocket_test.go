// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package socket

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	waLog "github.com/profchaos/wawire/util/log"
)

func newTestFrameSocket() (*FrameSocket, *[][]byte) {
	fs := NewFrameSocket(waLog.Noop, nil)
	var frames [][]byte
	fs.OnFrame = func(data []byte) {
		frames = append(frames, data)
	}
	return fs, &frames
}

func frameBytes(payload []byte) []byte {
	out := make([]byte, FrameLengthSize+len(payload))
	out[0] = byte(len(payload) >> 16)
	out[1] = byte(len(payload) >> 8)
	out[2] = byte(len(payload))
	copy(out[FrameLengthSize:], payload)
	return out
}

func TestProcessDataSingleFrame(t *testing.T) {
	fs, frames := newTestFrameSocket()
	fs.processData(frameBytes([]byte("hello")))
	require.Len(t, *frames, 1)
	assert.Equal(t, []byte("hello"), (*frames)[0])
}

func TestProcessDataMultipleFramesInOneMessage(t *testing.T) {
	fs, frames := newTestFrameSocket()
	msg := append(frameBytes([]byte("one")), frameBytes([]byte("two"))...)
	msg = append(msg, frameBytes([]byte("three"))...)
	fs.processData(msg)
	require.Len(t, *frames, 3)
	assert.Equal(t, []byte("one"), (*frames)[0])
	assert.Equal(t, []byte("two"), (*frames)[1])
	assert.Equal(t, []byte("three"), (*frames)[2])
}

func TestProcessDataFrameSpanningMessages(t *testing.T) {
	fs, frames := newTestFrameSocket()
	full := frameBytes(bytes.Repeat([]byte{0xAB}, 1000))
	fs.processData(full[:100])
	require.Len(t, *frames, 0)
	fs.processData(full[100:500])
	require.Len(t, *frames, 0)
	fs.processData(full[500:])
	require.Len(t, *frames, 1)
	assert.Equal(t, bytes.Repeat([]byte{0xAB}, 1000), (*frames)[0])
}

func TestProcessDataPartialHeader(t *testing.T) {
	fs, frames := newTestFrameSocket()
	full := frameBytes([]byte("payload"))
	fs.processData(full[:2])
	require.Len(t, *frames, 0)
	fs.processData(full[2:])
	require.Len(t, *frames, 1)
	assert.Equal(t, []byte("payload"), (*frames)[0])
}

func TestProcessDataMaxSizeFrame(t *testing.T) {
	fs, frames := newTestFrameSocket()
	payload := make([]byte, FrameMaxSize)
	fs.processData(frameBytes(payload))
	require.Len(t, *frames, 1)
	assert.Len(t, (*frames)[0], FrameMaxSize)
}

func TestSendFrameClosedSocket(t *testing.T) {
	fs := NewFrameSocket(waLog.Noop, nil)
	err := fs.SendFrame([]byte("data"))
	assert.ErrorIs(t, err, ErrSocketClosed)
}

func TestSendFrameTooLarge(t *testing.T) {
	fs := NewFrameSocket(waLog.Noop, nil)
	err := fs.SendFrame(make([]byte, FrameMaxSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestConsumeNextFrame(t *testing.T) {
	fs, frames := newTestFrameSocket()
	ch, cancel := ConsumeNextFrame(fs)
	defer cancel()
	fs.processData(frameBytes([]byte("intercepted")))
	select {
	case data := <-ch:
		assert.Equal(t, []byte("intercepted"), data)
	default:
		t.Fatal("expected frame on channel")
	}
	// The previous handler is restored after one frame.
	fs.processData(frameBytes([]byte("passthrough")))
	require.Len(t, *frames, 1)
	assert.Equal(t, []byte("passthrough"), (*frames)[0])
}
