// Copyright (c) 2024 The wawire authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePreKeyLifecycle(t *testing.T) {
	ms := NewMemoryStore()

	batch, err := ms.GetOrGenPreKeys(30)
	require.NoError(t, err)
	require.Len(t, batch, 30)
	assert.EqualValues(t, 1, batch[0].KeyID)
	assert.EqualValues(t, 30, batch[29].KeyID)

	// Nothing is marked uploaded yet
	count, err := ms.UploadedPreKeyCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Asking again before upload returns the same batch, not new keys
	again, err := ms.GetOrGenPreKeys(30)
	require.NoError(t, err)
	assert.Equal(t, batch[0].KeyID, again[0].KeyID)
	assert.Equal(t, batch[29].KeyID, again[29].KeyID)

	require.NoError(t, ms.MarkPreKeysAsUploaded(batch[29].KeyID))
	count, err = ms.UploadedPreKeyCount()
	require.NoError(t, err)
	assert.Equal(t, 30, count)

	// The next batch continues the ID sequence
	next, err := ms.GetOrGenPreKeys(5)
	require.NoError(t, err)
	assert.EqualValues(t, 31, next[0].KeyID)

	// Consumed keys disappear
	require.NoError(t, ms.RemovePreKey(batch[0].KeyID))
	key, err := ms.GetPreKey(batch[0].KeyID)
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestMemoryStoreIdentities(t *testing.T) {
	ms := NewMemoryStore()
	var key [32]byte
	key[0] = 1

	// Unknown identities are trusted on first use
	trusted, err := ms.IsTrustedIdentity("user.0:1", key)
	require.NoError(t, err)
	assert.True(t, trusted)

	require.NoError(t, ms.PutIdentity("user.0:1", key))
	trusted, err = ms.IsTrustedIdentity("user.0:1", key)
	require.NoError(t, err)
	assert.True(t, trusted)

	var otherKey [32]byte
	otherKey[0] = 2
	trusted, err = ms.IsTrustedIdentity("user.0:1", otherKey)
	require.NoError(t, err)
	assert.False(t, trusted)
}
