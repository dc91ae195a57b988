// Package cache implements the generic record cache's incremental cleaner
// (spec.md §4.5): a periodic, cooperative sweep over a name->rdataset
// database that is NOT the ADB's own bucket store (spec.md §1 draws that
// distinction explicitly — this is the sibling subsystem that exemplifies
// the same "visit a little, then yield" pattern at a different
// granularity).
package cache

import "time"

// NodeHandle is an opaque handle into a Database's iteration order. The
// cleaner never interprets it; it only holds it between ExpireNode and
// ReleaseNode calls.
type NodeHandle interface{}

// Iterator walks a Database's nodes in some stable (implementation-
// defined) order. Pause releases any long-lived locks the iterator holds
// without losing its position, matching spec.md §4.5's "pause the
// iterator (releasing long-lived locks) and self-reschedule".
type Iterator interface {
	// First positions the iterator at the first node, returning false if
	// the database is empty.
	First() bool
	// Next advances to the next node, returning false on exhaustion.
	Next() bool
	// Node returns a handle to the node at the iterator's current
	// position.
	Node() NodeHandle
	// Pause releases locks the iterator holds internally without
	// invalidating its position; a later call to Next resumes from where
	// Pause was called.
	Pause()
	// Release tears the iterator down entirely. Called on exhaustion or
	// error (spec.md §4.5).
	Release()
}

// Database is the generic name->rdataset store the cleaner sweeps. It is
// consumed, not implemented, by this package — the concrete database
// (views, authoritative data, hints, or a stale cache per spec.md §1) sits
// outside the core.
type Database interface {
	// NewIterator creates a fresh Iterator positioned before the first
	// node.
	NewIterator() (Iterator, error)

	// ExpireNode removes stale rdatasets from the node at t, per spec.md
	// §4.5's "expire node at time T" operation.
	ExpireNode(node NodeHandle, t time.Time) error

	// ReleaseNode releases whatever the cleaner was holding on the node
	// (e.g. a node lock) after ExpireNode returns.
	ReleaseNode(node NodeHandle)

	// DecLiveTasks decrements the database's live-task count (the
	// cleaner is one such task) and reports whether the database should
	// now be freed: the live-task count is zero AND the database has no
	// external references left (spec.md §4.5 shutdown contract).
	DecLiveTasks() (shouldFree bool)

	// Free releases the database's resources. Called only when
	// DecLiveTasks reports shouldFree.
	Free()
}
