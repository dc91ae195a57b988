package adb

import "container/list"

// NameHook is a directed edge from a Name to an Endpoint — the unit of
// address membership (GLOSSARY). It contributes exactly one reference to
// its Endpoint (spec.md §3 invariants).
type NameHook struct {
	Entry *Endpoint
	elem  *list.Element // this hook's position in its Name's v4 or v6 list
}

func (h *NameHook) reset() { *h = NameHook{} }
