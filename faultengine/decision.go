// Package faultengine implements the fault decision and application
// pipeline: given a configured Plan, a ledger, and an oracle, it decides
// whether a given call should fail, be delayed, or have its data mutated,
// and carries that decision out.
package faultengine

import "syscall"

// Kind identifies what a Decision asks the caller to do.
type Kind int

const (
	// Pass means the call should proceed to the backend, with Size and
	// CorruptWrite applied when they are set.
	Pass Kind = iota
	// Fail means the call should return Errno immediately without
	// reaching the backend.
	Fail
)

// Decision is the result of the pre-phase (Decide). Size and
// CorruptWrite are only meaningful for Read/Write operations.
type Decision struct {
	Kind  Kind
	Errno syscall.Errno

	// Size, if non-nil, truncates the requested read/write length to
	// this many bytes (the partial fault).
	Size *int

	// CorruptWrite, if non-nil, replaces the bytes to be written to the
	// backend (write-side corruption). It is never set when Kind==Fail.
	CorruptWrite []byte
}
