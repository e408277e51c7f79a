// Package faultop defines the closed taxonomy of POSIX file operations
// that faultfs can observe and inject faults into.
package faultop

import (
	"fmt"
	"strings"
)

// Op identifies one of the file operations faultfs interposes on. The set
// is closed and ordered identically to the original driver's operation
// table so that saved configuration masks remain stable.
type Op uint8

const (
	GetAttr Op = iota
	ReadDir
	Create
	Mknod
	Read
	Write
	Open
	Release
	MkDir
	RmDir
	Unlink
	Rename
	Access
	Chmod
	Chown
	Truncate
	Utimens

	// NumOps is the number of operations in the taxonomy. Not itself a
	// valid Op.
	NumOps
)

var names = [NumOps]string{
	GetAttr:  "getattr",
	ReadDir:  "readdir",
	Create:   "create",
	Mknod:    "mknod",
	Read:     "read",
	Write:    "write",
	Open:     "open",
	Release:  "release",
	MkDir:    "mkdir",
	RmDir:    "rmdir",
	Unlink:   "unlink",
	Rename:   "rename",
	Access:   "access",
	Chmod:    "chmod",
	Chown:    "chown",
	Truncate: "truncate",
	Utimens:  "utimens",
}

// String returns the lower-case configuration name for op, matching the
// names accepted in an operations mask in a config file.
func (op Op) String() string {
	if op >= NumOps {
		return fmt.Sprintf("faultop.Op(%d)", uint8(op))
	}
	return names[op]
}

// Parse maps a configuration name back to its Op, case-insensitively.
func Parse(name string) (Op, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for op, n := range names {
		if n == name {
			return Op(op), nil
		}
	}
	return 0, fmt.Errorf("faultop: unknown operation %q", name)
}

// All returns every Op in taxonomy order.
func All() []Op {
	out := make([]Op, NumOps)
	for i := range out {
		out[i] = Op(i)
	}
	return out
}
