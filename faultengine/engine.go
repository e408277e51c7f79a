package faultengine

import (
	"time"

	"github.com/faultfs/faultfs/faultop"
	"github.com/faultfs/faultfs/faultplan"
	"github.com/faultfs/faultfs/ledger"
	"github.com/faultfs/faultfs/logging"
	"github.com/faultfs/faultfs/oracle"
)

// Call describes one interposed operation, as much as the engine needs
// to know to make and apply a decision.
type Call struct {
	Op   faultop.Op
	Path string

	// RequestedSize is the number of bytes the caller asked to read or
	// write; zero for operations that don't move data.
	RequestedSize int

	// WriteData is the buffer the caller wants written, for Write calls.
	WriteData []byte
}

// Engine is the fault decision and application pipeline for one mount.
// It is safe for concurrent use from multiple goroutines.
type Engine struct {
	plan    *faultplan.Plan
	ledger  *ledger.Ledger
	oracle  oracle.Source
	log     *logging.Logger
	started time.Time

	sleep func(time.Duration) // overridable for tests
}

// New returns an Engine enforcing plan, recording into l, and drawing
// randomness from src. log may be nil, in which case the engine does not
// log fault events.
func New(plan *faultplan.Plan, l *ledger.Ledger, src oracle.Source, log *logging.Logger) *Engine {
	return &Engine{
		plan:    plan,
		ledger:  l,
		oracle:  src,
		log:     log,
		started: time.Now(),
		sleep:   time.Sleep,
	}
}

// Decide runs the pre-phase of the pipeline (spec §4.3): it records the
// call against the ledger, then evaluates error, timing, and count faults
// in that precedence order, returning immediately on the first that
// fires; otherwise it applies the delay fault, computes any
// partial-completion truncation, and computes any write-side corruption.
// Byte counters are updated separately by Apply once the real outcome is
// known.
func (e *Engine) Decide(call Call) Decision {
	if e.plan == nil || !e.plan.Enabled {
		return Decision{Kind: Pass}
	}

	// The call counter advances before any fault is evaluated, including
	// calls that go on to fail right here: a count fault that short-
	// circuits a call still must see that call counted, or its gate
	// freezes one call short of the threshold forever.
	calls := e.ledger.ObserveCall(call.Op)

	if d, failed := e.decideError(call); failed {
		return d
	}
	if d, failed := e.decideTiming(call); failed {
		return d
	}
	if d, failed := e.decideCount(call, calls); failed {
		return d
	}

	e.applyDelay(call)

	d := Decision{Kind: Pass}
	e.applyPartial(call, &d)
	e.applyWriteCorruption(call, &d)
	return d
}

func (e *Engine) decideError(call Call) (Decision, bool) {
	f := e.plan.Error
	if f == nil || !f.Mask.Has(call.Op) {
		return Decision{}, false
	}
	if !e.oracle.Trigger(f.Probability) {
		return Decision{}, false
	}
	e.logFault("error_fault", call)
	return Decision{Kind: Fail, Errno: f.Errno}, true
}

func (e *Engine) decideTiming(call Call) (Decision, bool) {
	f := e.plan.Timing
	if f == nil || !f.Enabled || !f.Mask.Has(call.Op) {
		return Decision{}, false
	}
	uptime := time.Since(e.started)
	if uptime < time.Duration(f.AfterMinutes)*time.Minute {
		return Decision{}, false
	}
	e.logFault("timing_fault", call)
	return Decision{Kind: Fail, Errno: eio}, true
}

func (e *Engine) decideCount(call Call, calls uint64) (Decision, bool) {
	f := e.plan.Count
	if f == nil || !f.Enabled || !f.Mask.Has(call.Op) {
		return Decision{}, false
	}

	// calls is the global op_count, already incremented for this call by
	// Decide's pre-phase (spec §4.3 step 3c gates every_n on op_count, not
	// a per-operation counter).
	if f.EveryN > 0 && calls%f.EveryN == 0 {
		e.logFault("operation_count_fault (every_n)", call)
		return Decision{Kind: Fail, Errno: eio}, true
	}
	if f.AfterBytes > 0 && e.ledger.BytesMoved() >= f.AfterBytes {
		e.logFault("operation_count_fault (after_bytes)", call)
		return Decision{Kind: Fail, Errno: eio}, true
	}
	return Decision{}, false
}

func (e *Engine) applyDelay(call Call) {
	f := e.plan.Delay
	if f == nil || !f.Mask.Has(call.Op) {
		return
	}
	if !e.oracle.Trigger(f.Probability) {
		return
	}
	e.logFault("delay_fault", call)
	e.sleep(time.Duration(f.DelayMs) * time.Millisecond)
}

func (e *Engine) applyPartial(call Call, d *Decision) {
	if call.Op != faultop.Read && call.Op != faultop.Write {
		return
	}
	f := e.plan.Partial
	if f == nil || !f.Mask.Has(call.Op) || call.RequestedSize <= 0 {
		return
	}
	if !e.oracle.Trigger(f.Probability) {
		return
	}
	n := int(float32(call.RequestedSize) * f.Factor)
	if n < 1 {
		n = 1
	}
	if n > call.RequestedSize {
		n = call.RequestedSize
	}
	e.logFault("partial_fault", call)
	d.Size = &n
}

func (e *Engine) applyWriteCorruption(call Call, d *Decision) {
	if call.Op != faultop.Write {
		return
	}
	f := e.plan.Corruption
	if f == nil || !f.Mask.Has(faultop.Write) || len(call.WriteData) == 0 {
		return
	}
	if !e.oracle.Trigger(f.Probability) {
		return
	}

	data := call.WriteData
	if d.Size != nil && *d.Size < len(data) {
		data = data[:*d.Size]
	}
	corrupted := e.corrupt(data, f.Percentage)
	if !f.Silent {
		e.logFault("corruption_fault (write)", call)
	}
	d.CorruptWrite = corrupted
}

// Apply runs the post-phase of the pipeline (spec §4.4): given the actual
// number of bytes moved by the backend and, for reads, the buffer
// returned to the caller, it applies read-side corruption and records the
// byte counters. The call counter is recorded earlier, in Decide's
// pre-phase, since Apply is never reached by a call Decide already failed.
func (e *Engine) Apply(call Call, n int, data []byte) {
	defer e.ledger.ObserveBytes(call.Op, n)

	if call.Op != faultop.Read || e.plan == nil || !e.plan.Enabled || n <= 0 {
		return
	}
	f := e.plan.Corruption
	if f == nil || !f.Mask.Has(faultop.Read) {
		return
	}
	if !e.oracle.Trigger(f.Probability) {
		return
	}
	corrupted := e.corrupt(data[:n], f.Percentage)
	copy(data[:n], corrupted)
	if !f.Silent {
		e.logFault("corruption_fault (read)", call)
	}
}

// corrupt returns a copy of data with ceil-free floor(len*pct/100) bytes,
// but never fewer than one when len(data) > 0, flipped via the oracle's
// random byte and index streams.
func (e *Engine) corrupt(data []byte, pct float32) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	if len(out) == 0 {
		return out
	}
	k := int(float32(len(out)) * pct / 100)
	if k < 1 {
		k = 1
	}
	if k > len(out) {
		k = len(out)
	}
	for i := 0; i < k; i++ {
		idx := e.oracle.RandomIndex(len(out))
		out[idx] ^= e.oracle.RandomByte()
	}
	return out
}

func (e *Engine) logFault(name string, call Call) {
	if e.log == nil {
		return
	}
	e.log.Info(name+" triggered", "op", call.Op.String(), "path", call.Path)
}
