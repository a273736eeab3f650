// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wawire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsConnectionStale(t *testing.T) {
	const interval = 30 * time.Second
	lastReceived := time.UnixMilli(1_000_000_000_000)

	// One millisecond over the interval plus grace period is stale
	assert.True(t, isConnectionStale(lastReceived, lastReceived.Add(35_001*time.Millisecond), interval))
	// One millisecond under is not
	assert.False(t, isConnectionStale(lastReceived, lastReceived.Add(34_999*time.Millisecond), interval))
	// The boundary itself is not stale yet
	assert.False(t, isConnectionStale(lastReceived, lastReceived.Add(35_000*time.Millisecond), interval))
}
