// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package bitset implements a fixed 256-bit set.
package bitset

// Size is the number of distinct values a Set tracks.
const Size = 256

// Set is a fixed set of 256 values. The zero value is an empty set.
type Set [4]uint64

// Include adds value to the set.
func (s *Set) Include(value uint8) {
	s[value>>6] |= 1 << (value & 63)
}

// Exclude removes value from the set.
func (s *Set) Exclude(value uint8) {
	s[value>>6] &^= 1 << (value & 63)
}

// Contains reports whether value is in the set.
func (s *Set) Contains(value uint8) bool {
	return s[value>>6]&(1<<(value&63)) != 0
}

// IsEmpty reports whether no value is in the set.
func (s *Set) IsEmpty() bool {
	return s[0]|s[1]|s[2]|s[3] == 0
}

// Count returns the number of values in the set.
func (s *Set) Count() int {
	count := 0
	for _, word := range s {
		for ; word != 0; word &= word - 1 {
			count++
		}
	}
	return count
}

// Values returns the members of the set in ascending order.
func (s *Set) Values() []uint8 {
	values := make([]uint8, 0, s.Count())
	for i := 0; i < Size; i++ {
		if s.Contains(uint8(i)) {
			values = append(values, uint8(i))
		}
	}
	return values
}
