// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package bitset_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"zoran.io/zoran/shared/bitset"
)

func TestSet(t *testing.T) {
	var s bitset.Set
	require.True(t, s.IsEmpty())
	require.Equal(t, 0, s.Count())

	s.Include(0)
	s.Include(63)
	s.Include(64)
	s.Include(255)
	require.False(t, s.IsEmpty())
	require.Equal(t, 4, s.Count())
	require.Equal(t, []uint8{0, 63, 64, 255}, s.Values())

	require.True(t, s.Contains(63))
	require.False(t, s.Contains(62))

	s.Exclude(63)
	require.False(t, s.Contains(63))
	require.Equal(t, 3, s.Count())

	s.Exclude(0)
	s.Exclude(64)
	s.Exclude(255)
	require.True(t, s.IsEmpty())
}
