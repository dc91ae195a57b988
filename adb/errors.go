package adb

import "github.com/pkg/errors"

// Surfaced error kinds (spec.md §7). These are the only failure modes a
// caller of the public API ever observes; everything else is recovered
// internally (partial imports, stale ZoneInfo, cleaner iterator errors) or
// is a debug-only assertion (lock-order violations, refcount underflow,
// freeing a linked entity).
var (
	ErrShuttingDown  = errors.New("adb: shutting down")
	ErrNoMemory      = errors.New("adb: no memory")
	ErrNotFound      = errors.New("adb: not found")
	ErrExists        = errors.New("adb: already exists")
	ErrInvalidOption = errors.New("adb: at least one of INET/INET6 must be set")
)
