package faultengine

import "syscall"

// eio is the errno used for timing and count faults, which carry no
// configurable errno of their own (fault_timing_t/fault_operation_count_t
// in the original driver's config.h have no errno field, unlike
// fault_error_t) and are therefore deterministic EIO triggers.
const eio = syscall.EIO
