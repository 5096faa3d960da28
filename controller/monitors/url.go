// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package monitors

import (
	"net/url"
	"strings"
)

// supported url schemes for host/schemes.
var supportedSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
	"sftp":  true,
}

// Target is a parsed monitor uri. A target is either fully qualified
// (scheme and authority, optional path) or purely relative (path only).
type Target struct {
	FullyQualified bool

	// Scheme and Authority are lowercased; empty for relative targets.
	Scheme    string
	Authority string

	Path  string
	Query string
}

// Origin returns the scheme://authority prefix of a fully qualified target.
func (t Target) Origin() string {
	return t.Scheme + "://" + t.Authority
}

// Slug returns the path with the query appended. An empty path becomes "/";
// when a query is present it is joined with "?" after a trailing slash or
// with "/?" otherwise.
func (t Target) Slug() string {
	path := t.Path
	if path == "" {
		path = "/"
	}
	if t.Query == "" {
		return path
	}
	if strings.HasSuffix(path, "/") {
		return path + "?" + t.Query
	}
	return path + "/?" + t.Query
}

// ParseTarget validates a proposed monitor uri.
func ParseTarget(raw string) (Target, error) {
	if strings.Contains(raw, "#") {
		return Target{}, ErrValidation.New("uri contains a fragment: %q", raw)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return Target{}, ErrValidation.New("malformed uri %q: %v", raw, err)
	}
	if parsed.User != nil {
		return Target{}, ErrValidation.New("uri contains userinfo: %q", raw)
	}

	scheme := strings.ToLower(parsed.Scheme)
	authority := strings.ToLower(parsed.Host)

	switch {
	case scheme != "" && authority != "":
		if !supportedSchemes[scheme] {
			return Target{}, ErrValidation.New("unsupported scheme %q", parsed.Scheme)
		}
		return Target{
			FullyQualified: true,
			Scheme:         scheme,
			Authority:      authority,
			Path:           parsed.Path,
			Query:          parsed.RawQuery,
		}, nil

	case scheme == "" && authority == "":
		if parsed.Path == "" && parsed.RawQuery == "" {
			return Target{}, ErrValidation.New("empty uri")
		}
		return Target{
			Path:  parsed.Path,
			Query: parsed.RawQuery,
		}, nil

	default:
		return Target{}, ErrValidation.New("uri must be fully qualified or relative: %q", raw)
	}
}

// ParseOrigin validates a host/scheme url, which is restricted to
// scheme://authority with no path, query or fragment. It returns the
// normalized origin.
func ParseOrigin(raw string) (string, error) {
	target, err := ParseTarget(raw)
	if err != nil {
		return "", err
	}
	if !target.FullyQualified {
		return "", ErrValidation.New("host/scheme url must be fully qualified: %q", raw)
	}
	if (target.Path != "" && target.Path != "/") || target.Query != "" {
		return "", ErrValidation.New("host/scheme url must not carry a path or query: %q", raw)
	}
	return target.Origin(), nil
}
