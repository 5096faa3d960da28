// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package monitors

import (
	"github.com/zeebo/errs"

	"zoran.io/zoran/controller/customers"
)

// HostSchemeID identifies a host/scheme row. Zero is never a valid id.
type HostSchemeID int32

// MonitorID identifies a monitor row. Zero is never a valid id.
type MonitorID int32

// HostScheme is the (scheme, authority) prefix shared by all monitors on the
// same origin for one customer.
type HostScheme struct {
	ID         HostSchemeID
	CustomerID customers.ID

	// URL is restricted to scheme://authority with no path, query or
	// fragment.
	URL string

	// SSLExpiresAt is the last known certificate expiration in unix
	// seconds, zero when unknown.
	SSLExpiresAt int64
}

// Monitor is a single configured probe target.
type Monitor struct {
	ID           MonitorID
	CustomerID   customers.ID
	HostSchemeID HostSchemeID

	// UserOrdering is the compacted position of the monitor within the
	// customer's configuration.
	UserOrdering int16

	// Slug is the path plus optional ?query under the host/scheme. It
	// uniquely identifies the monitor within the host/scheme.
	Slug string

	Method           Method
	ContentCheckMode ContentCheckMode
	Keywords         [][]byte
	ContentType      ContentType
	UserAgent        string
	PostContent      []byte
}

// Method is an HTTP request method a monitor may use.
type Method int

// Supported monitor methods.
const (
	MethodGet Method = iota
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodOptions
	MethodPatch
)

var methodNames = [...]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}

// String returns the wire string of the method.
func (m Method) String() string {
	if int(m) < 0 || int(m) >= len(methodNames) {
		return "GET"
	}
	return methodNames[m]
}

// ParseMethod parses a wire string into a method.
func ParseMethod(s string) (Method, error) {
	for i, name := range methodNames {
		if name == s {
			return Method(i), nil
		}
	}
	return MethodGet, errs.New("unknown method %q", s)
}

// ContentCheckMode describes how a response body is verified.
type ContentCheckMode int

// Supported content check modes.
const (
	NoCheck ContentCheckMode = iota
	ContentMatch
	AnyKeywords
	AllKeywords
	SmartContentMatch
)

var checkModeNames = [...]string{"NO_CHECK", "CONTENT_MATCH", "ANY_KEYWORDS", "ALL_KEYWORDS", "SMART_CONTENT_MATCH"}

// String returns the wire string of the check mode.
func (m ContentCheckMode) String() string {
	if int(m) < 0 || int(m) >= len(checkModeNames) {
		return "NO_CHECK"
	}
	return checkModeNames[m]
}

// UsesKeywords reports whether the mode compares against a keyword list.
func (m ContentCheckMode) UsesKeywords() bool {
	return m == AnyKeywords || m == AllKeywords
}

// UsesContentMatch reports whether the mode hashes page content.
func (m ContentCheckMode) UsesContentMatch() bool {
	return m == ContentMatch || m == SmartContentMatch
}

// ParseContentCheckMode parses a wire string into a check mode.
func ParseContentCheckMode(s string) (ContentCheckMode, error) {
	for i, name := range checkModeNames {
		if name == s {
			return ContentCheckMode(i), nil
		}
	}
	return NoCheck, errs.New("unknown content check mode %q", s)
}

// ContentType is the body encoding used for POST monitors.
type ContentType int

// Supported post content types.
const (
	ContentTypeText ContentType = iota
	ContentTypeJSON
	ContentTypeXML
)

var contentTypeNames = [...]string{"TEXT", "JSON", "XML"}

// String returns the wire string of the content type.
func (t ContentType) String() string {
	if int(t) < 0 || int(t) >= len(contentTypeNames) {
		return "TEXT"
	}
	return contentTypeNames[t]
}

// ParseContentType parses a wire string into a content type.
func ParseContentType(s string) (ContentType, error) {
	for i, name := range contentTypeNames {
		if name == s {
			return ContentType(i), nil
		}
	}
	return ContentTypeText, errs.New("unknown content type %q", s)
}

// Equal reports whether two monitors carry the same configuration, ignoring
// their ids.
func (m Monitor) Equal(other Monitor) bool {
	if m.CustomerID != other.CustomerID ||
		m.HostSchemeID != other.HostSchemeID ||
		m.UserOrdering != other.UserOrdering ||
		m.Slug != other.Slug ||
		m.Method != other.Method ||
		m.ContentCheckMode != other.ContentCheckMode ||
		m.ContentType != other.ContentType ||
		m.UserAgent != other.UserAgent ||
		string(m.PostContent) != string(other.PostContent) ||
		len(m.Keywords) != len(other.Keywords) {
		return false
	}
	for i := range m.Keywords {
		if string(m.Keywords[i]) != string(other.Keywords[i]) {
			return false
		}
	}
	return true
}
