// Package ledger tracks call and byte counters for the running mount,
// both for the count fault's own decisions and for external observability
// over Prometheus.
package ledger

import (
	"sync/atomic"
	"time"

	"github.com/faultfs/faultfs/faultop"
)

// Ledger is the shared, concurrency-safe counter set consulted by the
// fault engine and exported as metrics. All counters are plain atomics
// rather than a single mutex: the spec permits either discipline, and
// per-counter atomics avoid serializing unrelated concurrent operations,
// which matters because the fault engine's delay step sleeps and must
// not hold anything that would block an unrelated call.
type Ledger struct {
	opCount      uint64
	perOpCount   [faultop.NumOps]uint64
	bytesRead    uint64
	bytesWritten uint64
	startTime    time.Time

	metrics *metrics // nil if Prometheus export was not requested
}

// New returns a Ledger with its start time set to now.
func New() *Ledger {
	return &Ledger{startTime: time.Now()}
}

// ObserveCall records one call to op, for both the total and the
// per-operation counters, and returns the post-increment total op_count.
// The count fault's every_n gate compares against this global total, not
// the per-operation counter: per-op counts are kept for metrics and
// reporting only.
func (l *Ledger) ObserveCall(op faultop.Op) uint64 {
	total := atomic.AddUint64(&l.opCount, 1)
	if op < faultop.NumOps {
		atomic.AddUint64(&l.perOpCount[op], 1)
	}
	if l.metrics != nil {
		l.metrics.observeCall(op)
	}
	return total
}

// ObserveBytes records n bytes having moved through op (Read or Write).
func (l *Ledger) ObserveBytes(op faultop.Op, n int) {
	if n <= 0 {
		return
	}
	switch op {
	case faultop.Read:
		atomic.AddUint64(&l.bytesRead, uint64(n))
	case faultop.Write:
		atomic.AddUint64(&l.bytesWritten, uint64(n))
	}
	if l.metrics != nil {
		l.metrics.observeBytes(op, n)
	}
}

// BytesMoved returns the total bytes read plus written so far, for the
// count fault's after_bytes gate.
func (l *Ledger) BytesMoved() uint64 {
	return atomic.LoadUint64(&l.bytesRead) + atomic.LoadUint64(&l.bytesWritten)
}

// Snapshot is a race-free, value-typed copy of the ledger's counters.
type Snapshot struct {
	OpCount      uint64
	PerOpCount   [faultop.NumOps]uint64
	BytesRead    uint64
	BytesWritten uint64
	Uptime       time.Duration
}

// Snapshot takes a consistent-enough snapshot of the ledger's counters.
// Because each field is an independent atomic, the snapshot is not a
// single atomic transaction, but every individual field is race-free and
// monotonic, which is all the spec requires.
func (l *Ledger) Snapshot() Snapshot {
	s := Snapshot{
		OpCount:      atomic.LoadUint64(&l.opCount),
		BytesRead:    atomic.LoadUint64(&l.bytesRead),
		BytesWritten: atomic.LoadUint64(&l.bytesWritten),
		Uptime:       time.Since(l.startTime),
	}
	for i := range s.PerOpCount {
		s.PerOpCount[i] = atomic.LoadUint64(&l.perOpCount[i])
	}
	return s
}
