// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package socket

import (
	"sync"
)

type Frameable interface {
	SetOnFrame(func([]byte))
	GetOnFrame() func([]byte)
}

// ConsumeNextFrame temporarily replaces the frame handler of the given socket
// with one that delivers the next single frame into the returned channel. The
// previous handler is restored after that frame, or when cancel is called.
func ConsumeNextFrame(frameable Frameable) (output <-chan []byte, cancel func()) {
	prevOnFrame := frameable.GetOnFrame()
	var once sync.Once
	onFinish := func() {
		once.Do(func() {
			frameable.SetOnFrame(prevOnFrame)
		})
	}
	ch := make(chan []byte, 1)
	frameable.SetOnFrame(func(data []byte) {
		ch <- data
		onFinish()
	})
	return ch, onFinish
}
