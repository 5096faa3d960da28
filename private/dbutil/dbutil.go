// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

// Package dbutil contains helpers for the supported control database drivers.
package dbutil

import (
	"strconv"
	"strings"

	"github.com/zeebo/errs"
)

// Implementation type of valid DBs.
type Implementation int

const (
	// Unknown is an unknown db type.
	Unknown Implementation = iota
	// Postgres is a PostgreSQL db type.
	Postgres
	// SQLite is a SQLite3 db type.
	SQLite
)

// String returns the name of the implementation.
func (impl Implementation) String() string {
	switch impl {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite3"
	default:
		return "unknown"
	}
}

// SplitConnStr parses a database URL of the form `scheme://rest` and returns
// the registered driver name, the source to open it with and which
// implementation it selects.
func SplitConnStr(s string) (driver string, source string, implementation Implementation, err error) {
	parts := strings.SplitN(s, "://", 2)
	if len(parts) != 2 {
		return "", "", Unknown, errs.New("could not parse database URL %q", s)
	}

	switch parts[0] {
	case "postgres", "postgresql":
		// the postgres driver wants the full URL
		return "pgx", s, Postgres, nil
	case "sqlite", "sqlite3":
		return "sqlite3", parts[1], SQLite, nil
	default:
		return "", "", Unknown, errs.New("unsupported database scheme: %q", parts[0])
	}
}

// Rebind converts `?` placeholders to the dialect the implementation expects.
// Question marks inside single-quoted literals are left alone.
func Rebind(implementation Implementation, query string) string {
	if implementation != Postgres {
		return query
	}

	var out strings.Builder
	out.Grow(len(query) + 8)

	instring := false
	n := 0
	for _, r := range query {
		switch {
		case r == '\'':
			instring = !instring
			out.WriteRune(r)
		case r == '?' && !instring:
			n++
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(n))
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
