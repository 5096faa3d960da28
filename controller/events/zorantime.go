// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package events

import "math"

// EpochStart is the unix second the zoran epoch is anchored to,
// 2015-01-01T00:00:00Z. The constant must match the workers.
const EpochStart int64 = 1420070400

// ToZoran converts a unix timestamp to zoran seconds, saturating to
// [0, 2^32-1].
func ToZoran(unix int64) uint32 {
	rel := unix - EpochStart
	if rel < 0 {
		return 0
	}
	if rel > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(rel)
}

// FromZoran converts zoran seconds back to a unix timestamp.
func FromZoran(ts uint32) int64 {
	return EpochStart + int64(ts)
}

// ValidUnix reports whether the unix timestamp falls inside the
// representable zoran window.
func ValidUnix(unix int64) bool {
	return unix >= EpochStart && unix-EpochStart <= math.MaxUint32
}
