//go:build !debug

// Package debug's release-mode build: every check is a zero-cost no-op.
// The donor ships the inverse split as a build-tag pair too (debug package
// behind "debug", nothing outside it); this file is that missing half,
// supplied because the retrieval pack only carried debug_on.go.
package debug

import "sync"

const Enabled = false

func Errorf(string, ...interface{}) {}
func Infof(string, ...interface{})  {}

func Assert(bool, ...interface{})          {}
func AssertMsg(bool, string)                {}
func AssertNoErr(error)                     {}
func Assertf(bool, string, ...interface{}) {}

func AssertMutexLocked(*sync.Mutex)     {}
func AssertRWMutexLocked(*sync.RWMutex) {}
