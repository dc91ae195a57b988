package adb

import (
	"sync"

	"github.com/teris-io/shortid"
)

// diagABC mirrors the donor's own choice in cmn/shortid.go of supplying a
// custom alphabet rather than relying on the library's built-in default.
const diagABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

// Diagnostic IDs are never consulted by any control-flow decision; they
// exist purely so a log line or a dump() entry can name a specific Find
// or fetch without printing a pointer address, the same role
// cmn.GenUUID/GenTie play for request and xaction IDs in the donor.
var (
	diagOnce sync.Once
	diagGen  *shortid.Shortid
)

func newDiagID() string {
	diagOnce.Do(func() {
		diagGen = shortid.MustNew(1, diagABC, 1)
	})
	return diagGen.MustGenerate()
}
