// Copyright (C) 2026 Zoran Labs, Inc.
// See LICENSE for copying information.

package events

import (
	"bytes"
	"context"

	"zoran.io/zoran/controller/monitors"
)

// Disposition is the decision taken for an incoming worker report.
type Disposition int

// Dispositions.
const (
	// DispositionFailed means the report could not be classified.
	DispositionFailed Disposition = iota
	// DispositionIgnore means the report is a duplicate to drop.
	DispositionIgnore
	// DispositionRecordOnly means the report is recorded without an
	// upstream notification.
	DispositionRecordOnly
	// DispositionRecordAndReport means the report is recorded and
	// notified upstream.
	DispositionRecordAndReport
)

// String returns a human readable name for the disposition.
func (d Disposition) String() string {
	switch d {
	case DispositionIgnore:
		return "IGNORE"
	case DispositionRecordOnly:
		return "RECORD_ONLY"
	case DispositionRecordAndReport:
		return "RECORD_AND_REPORT"
	default:
		return "FAILED"
	}
}

// queryScope selects which history a checker consults.
type queryScope int

const (
	// scopeNone means the checker never queries history.
	scopeNone queryScope = iota
	// scopeMonitor means the checker consults the monitor's own history.
	scopeMonitor
	// scopeHostScheme means the checker consults every monitor sharing the
	// host/scheme.
	scopeHostScheme
)

// checker decides the disposition of one event kind. The family lists the
// kinds whose latest occurrence is consulted; interpret maps that latest
// event, or its absence, to a decision.
type checker struct {
	scope     queryScope
	family    []Kind
	interpret func(latest Event, found bool, kind Kind, workerStatus Status, hash []byte) Disposition
}

// defaultInterpret ignores exact repeats of the same kind and reports
// everything else. With no history the report is ignored.
func defaultInterpret(latest Event, found bool, kind Kind, _ Status, _ []byte) Disposition {
	if !found {
		return DispositionIgnore
	}
	if latest.Kind == kind {
		return DispositionIgnore
	}
	return DispositionRecordAndReport
}

// hashedInterpret ignores repeats only when the content hash is unchanged.
func hashedInterpret(latest Event, found bool, kind Kind, _ Status, hash []byte) Disposition {
	if found && latest.Kind == kind && bytes.Equal(latest.Hash, hash) {
		return DispositionIgnore
	}
	return DispositionRecordAndReport
}

// workingInterpret handles the bootstrap case: a monitor that has no history
// and no derived status yet records its first WORKING silently.
func workingInterpret(latest Event, found bool, kind Kind, workerStatus Status, hash []byte) Disposition {
	if !found {
		if workerStatus == StatusUnknown {
			return DispositionRecordOnly
		}
		return DispositionIgnore
	}
	return defaultInterpret(latest, found, kind, workerStatus, hash)
}

// noResponseInterpret reports the first failure even with no history.
func noResponseInterpret(latest Event, found bool, kind Kind, workerStatus Status, hash []byte) Disposition {
	if !found {
		return DispositionRecordAndReport
	}
	return defaultInterpret(latest, found, kind, workerStatus, hash)
}

// alwaysReport is used for customer defined kinds.
func alwaysReport(Event, bool, Kind, Status, []byte) Disposition {
	return DispositionRecordAndReport
}

// buildCheckers constructs the lookup table consulted by Decide. It is
// called once per service.
func buildCheckers() map[Kind]checker {
	probeFamily := []Kind{KindWorking, KindNoResponse, KindContentChanged, KindKeywords}
	sslFamily := []Kind{KindSSLCertificateExpiring, KindSSLCertificateRenewed}

	table := map[Kind]checker{
		KindWorking:        {scopeMonitor, probeFamily, workingInterpret},
		KindNoResponse:     {scopeMonitor, probeFamily, noResponseInterpret},
		KindContentChanged: {scopeMonitor, probeFamily, hashedInterpret},
		KindKeywords:       {scopeMonitor, probeFamily, hashedInterpret},

		KindSSLCertificateExpiring: {scopeHostScheme, sslFamily, defaultInterpret},
		KindSSLCertificateRenewed:  {scopeHostScheme, sslFamily, defaultInterpret},
	}
	for k := KindCustomer1; k < kindCount; k++ {
		table[k] = checker{scopeNone, nil, alwaysReport}
	}
	return table
}

// Decide classifies a worker report by consulting the relevant slice of the
// monitor's history. Unknown kinds yield DispositionFailed.
func (service *Service) Decide(ctx context.Context, kind Kind, workerStatus Status, monitorID monitors.MonitorID, hash []byte) (_ Disposition, err error) {
	defer mon.Task()(&ctx)(&err)

	chk, ok := service.checkers[kind]
	if !ok {
		return DispositionFailed, nil
	}

	var latest Event
	found := false
	switch chk.scope {
	case scopeMonitor:
		latest, err = service.db.LatestByMonitor(ctx, monitorID, chk.family)
	case scopeHostScheme:
		latest, err = service.db.LatestByHostScheme(ctx, monitorID, chk.family)
	default:
		err = ErrNotFound.New("")
	}
	switch {
	case err == nil:
		found = true
	case ErrNotFound.Has(err):
		err = nil
	default:
		return DispositionFailed, Error.Wrap(err)
	}

	return chk.interpret(latest, found, kind, workerStatus, hash), nil
}
