// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package events

import "strings"

// Kind is the type of a recorded event.
type Kind int

// Event kinds. The wire strings are upper snake case and must match the
// workers.
const (
	KindInvalid Kind = iota
	KindWorking
	KindNoResponse
	KindContentChanged
	KindKeywords
	KindSSLCertificateExpiring
	KindSSLCertificateRenewed
	KindCustomer1
	KindCustomer2
	KindCustomer3
	KindCustomer4
	KindCustomer5
	KindCustomer6
	KindCustomer7
	KindCustomer8
	KindCustomer9
	KindCustomer10
	KindTransaction
	KindInquiry
	KindSupportRequest
	KindStorageLimitReached

	kindCount
)

var kindNames = [...]string{
	"INVALID",
	"WORKING",
	"NO_RESPONSE",
	"CONTENT_CHANGED",
	"KEYWORDS",
	"SSL_CERTIFICATE_EXPIRING",
	"SSL_CERTIFICATE_RENEWED",
	"CUSTOMER_1",
	"CUSTOMER_2",
	"CUSTOMER_3",
	"CUSTOMER_4",
	"CUSTOMER_5",
	"CUSTOMER_6",
	"CUSTOMER_7",
	"CUSTOMER_8",
	"CUSTOMER_9",
	"CUSTOMER_10",
	"TRANSACTION",
	"INQUIRY",
	"SUPPORT_REQUEST",
	"STORAGE_LIMIT_REACHED",
}

// String returns the upper snake wire string of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindInvalid]
	}
	return kindNames[k]
}

// Tag returns the lower-case tag used in upstream notifications.
func (k Kind) Tag() string {
	return strings.ToLower(k.String())
}

// normalizeWire upper-cases a wire string and maps `-` to `_`.
func normalizeWire(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
}

// ParseKind parses a wire string into a kind. Parsing upper-cases the input
// and maps `-` to `_`; unknown strings yield KindInvalid.
func ParseKind(s string) Kind {
	s = normalizeWire(s)
	for i := 1; i < int(kindCount); i++ {
		if kindNames[i] == s {
			return Kind(i)
		}
	}
	return KindInvalid
}

// CustomerDefined reports whether the kind is raised by customer
// integrations rather than probe outcomes.
func (k Kind) CustomerDefined() bool {
	switch k {
	case KindCustomer1, KindCustomer2, KindCustomer3, KindCustomer4,
		KindCustomer5, KindCustomer6, KindCustomer7, KindCustomer8,
		KindCustomer9, KindCustomer10,
		KindTransaction, KindInquiry, KindSupportRequest, KindStorageLimitReached:
		return true
	}
	return false
}

// StatusTransition returns the monitor status the kind transitions a monitor
// to, with ok false when the kind leaves the status unchanged.
func (k Kind) StatusTransition() (_ Status, ok bool) {
	switch {
	case k == KindWorking, k == KindContentChanged, k == KindKeywords,
		k == KindSSLCertificateExpiring, k == KindSSLCertificateRenewed,
		k.CustomerDefined():
		return StatusWorking, true
	case k == KindNoResponse:
		return StatusFailed, true
	default:
		return StatusUnknown, false
	}
}
