package ledger

import (
	"sync"
	"testing"

	"github.com/faultfs/faultfs/faultop"
)

func TestObserveCallIncrementsTotalsAndPerOp(t *testing.T) {
	l := New()
	l.ObserveCall(faultop.Read)
	l.ObserveCall(faultop.Read)
	l.ObserveCall(faultop.Write)

	snap := l.Snapshot()
	if snap.OpCount != 3 {
		t.Errorf("OpCount = %d, want 3", snap.OpCount)
	}
	if snap.PerOpCount[faultop.Read] != 2 {
		t.Errorf("PerOpCount[Read] = %d, want 2", snap.PerOpCount[faultop.Read])
	}
	if snap.PerOpCount[faultop.Write] != 1 {
		t.Errorf("PerOpCount[Write] = %d, want 1", snap.PerOpCount[faultop.Write])
	}
}

func TestObserveBytesSplitsByOp(t *testing.T) {
	l := New()
	l.ObserveBytes(faultop.Read, 100)
	l.ObserveBytes(faultop.Write, 40)
	l.ObserveBytes(faultop.Read, 5)

	snap := l.Snapshot()
	if snap.BytesRead != 105 {
		t.Errorf("BytesRead = %d, want 105", snap.BytesRead)
	}
	if snap.BytesWritten != 40 {
		t.Errorf("BytesWritten = %d, want 40", snap.BytesWritten)
	}
}

func TestConcurrentObserveCallIsRaceFree(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.ObserveCall(faultop.Write)
		}()
	}
	wg.Wait()

	if got := l.Snapshot().PerOpCount[faultop.Write]; got != 100 {
		t.Errorf("PerOpCount[Write] = %d, want 100", got)
	}
}

func TestObserveCallReturnsRunningTotal(t *testing.T) {
	l := New()
	var last uint64
	for i := 0; i < 5; i++ {
		last = l.ObserveCall(faultop.Write)
	}
	if last != 5 {
		t.Errorf("ObserveCall returned %d, want 5", last)
	}
}

func TestBytesMovedSumsReadAndWritten(t *testing.T) {
	l := New()
	l.ObserveBytes(faultop.Read, 30)
	l.ObserveBytes(faultop.Write, 12)
	if got := l.BytesMoved(); got != 42 {
		t.Errorf("BytesMoved() = %d, want 42", got)
	}
}
