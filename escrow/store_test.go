// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package escrow

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreNextIDIncrements(t *testing.T) {
	store := NewMemStore(8)
	assert.Equal(t, uint64(0), store.NextID())
	assert.Equal(t, uint64(1), store.NextID())
	assert.Equal(t, uint64(2), store.NextID())
}

func TestMemStorePutAndGetShake(t *testing.T) {
	store := NewMemStore(8)
	s := newShake(store.NextID(), Principal{0x01}, big.NewInt(10), 100, Fingerprint{}, Fingerprint{})
	store.PutShake(s)

	got, ok := store.GetShake(s.ID())
	require.True(t, ok)
	assert.True(t, got.Equal(s))

	_, ok = store.GetShake(999)
	assert.False(t, ok)
}

func TestMemStoreChildrenIsDefensiveCopy(t *testing.T) {
	store := NewMemStore(8)
	store.AppendChild(1, 2)
	store.AppendChild(1, 3)

	kids := store.Children(1)
	kids[0] = 999 // mutating the returned slice must not affect the store

	again := store.Children(1)
	assert.Equal(t, []uint64{2, 3}, again)
}

func TestMemStoreRemaining(t *testing.T) {
	store := NewMemStore(8)
	_, ok := store.Remaining(1)
	assert.False(t, ok)

	store.SetRemaining(1, big.NewInt(500))
	v, ok := store.Remaining(1)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(500), v)

	// Returned value is a copy: mutating it must not affect the store.
	v.SetInt64(0)
	v2, _ := store.Remaining(1)
	assert.Equal(t, big.NewInt(500), v2)
}

func TestMemStoreWithoutCacheStillWorks(t *testing.T) {
	store := NewMemStore(0)
	s := newShake(store.NextID(), Principal{0x02}, big.NewInt(1), 1, Fingerprint{}, Fingerprint{})
	store.PutShake(s)
	got, ok := store.GetShake(s.ID())
	require.True(t, ok)
	assert.True(t, got.Equal(s))
}
