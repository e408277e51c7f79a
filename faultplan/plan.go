// Package faultplan holds the data model for a configured set of faults:
// the probabilities, parameters, and operation masks that the fault
// engine consults on every call.
package faultplan

import (
	"fmt"
	"syscall"

	"github.com/faultfs/faultfs/faultop"
)

// ErrorFault returns a configured errno on a fraction of matching calls.
//
// Grounded on fault_error_t in the original driver's config.h.
type ErrorFault struct {
	Probability float32
	Errno       syscall.Errno
	Mask        faultop.Mask
}

// CorruptionFault flips a percentage of the bytes in a matching read or
// write on a fraction of matching calls.
//
// Grounded on fault_corruption_t in config.h.
type CorruptionFault struct {
	Probability float32
	Percentage  float32
	Silent      bool
	Mask        faultop.Mask
}

// DelayFault adds latency before a matching call completes.
//
// Grounded on fault_delay_t in config.h.
type DelayFault struct {
	Probability float32
	DelayMs     int
	Mask        faultop.Mask
}

// TimingFault fails every matching call once the process has been up for
// at least AfterMinutes, until the process restarts.
//
// Grounded on fault_timing_t in config.h.
type TimingFault struct {
	Enabled      bool
	AfterMinutes int
	Mask         faultop.Mask
}

// CountFault fails a matching call when the global call count (all
// calls, not only matching ones) is a multiple of EveryN, and/or every
// matching call once at least AfterBytes have moved through Read/Write.
//
// Grounded on fault_operation_count_t in config.h.
type CountFault struct {
	Enabled    bool
	EveryN     uint64
	AfterBytes uint64
	Mask       faultop.Mask
}

// PartialFault truncates a matching read or write to Factor of its
// requested size on a fraction of matching calls.
//
// Grounded on fault_partial_t in config.h.
type PartialFault struct {
	Probability float32
	Factor      float32
	Mask        faultop.Mask
}

// Plan is the full set of configured faults for a mount. A nil pointer
// field means that fault category is disabled.
type Plan struct {
	Enabled bool

	Error      *ErrorFault
	Corruption *CorruptionFault
	Delay      *DelayFault
	Timing     *TimingFault
	Count      *CountFault
	Partial    *PartialFault
}

// Default returns the built-in default plan: fault injection disabled
// and no fault category configured. The per-category defaults applied
// once a category's section header appears in a config file come from
// DefaultError, DefaultCorruption, DefaultDelay, DefaultTiming,
// DefaultCount and DefaultPartial.
func Default() *Plan {
	return &Plan{Enabled: false}
}

// DefaultError returns the defaults applied when an [error_fault] section
// header is seen with no further keys.
func DefaultError() *ErrorFault {
	return &ErrorFault{
		Probability: 0.5,
		Errno:       syscall.EIO,
		Mask:        faultop.MaskAll(),
	}
}

// DefaultCorruption returns the defaults applied when a
// [corruption_fault] section header is seen with no further keys.
func DefaultCorruption() *CorruptionFault {
	return &CorruptionFault{
		Probability: 0.5,
		Percentage:  10.0,
		Silent:      true,
		Mask:        faultop.Of(faultop.Write),
	}
}

// DefaultDelay returns the defaults applied when a [delay_fault] section
// header is seen with no further keys.
func DefaultDelay() *DelayFault {
	return &DelayFault{
		Probability: 0.5,
		DelayMs:     500,
		Mask:        faultop.MaskAll(),
	}
}

// DefaultTiming returns the defaults applied when a [timing_fault]
// section header is seen with no further keys.
func DefaultTiming() *TimingFault {
	return &TimingFault{
		Enabled:      false,
		AfterMinutes: 5,
		Mask:         faultop.MaskAll(),
	}
}

// DefaultCount returns the defaults applied when an
// [operation_count_fault] section header is seen with no further keys.
func DefaultCount() *CountFault {
	return &CountFault{
		Enabled:    false,
		EveryN:     10,
		AfterBytes: 1 << 20,
		Mask:       faultop.MaskAll(),
	}
}

// DefaultPartial returns the defaults applied when a [partial_fault]
// section header is seen with no further keys.
func DefaultPartial() *PartialFault {
	return &PartialFault{
		Probability: 0.5,
		Factor:      0.5,
		Mask:        faultop.Of(faultop.Read, faultop.Write),
	}
}

// Validate checks that every configured probability, percentage, and
// factor is within its legal range.
func (p *Plan) Validate() error {
	if p.Error != nil {
		if err := checkProbability("error_fault.probability", p.Error.Probability); err != nil {
			return err
		}
	}
	if p.Corruption != nil {
		if err := checkProbability("corruption_fault.probability", p.Corruption.Probability); err != nil {
			return err
		}
		if p.Corruption.Percentage < 0 || p.Corruption.Percentage > 100 {
			return fmt.Errorf("corruption_fault.percentage %v out of range [0,100]", p.Corruption.Percentage)
		}
	}
	if p.Delay != nil {
		if err := checkProbability("delay_fault.probability", p.Delay.Probability); err != nil {
			return err
		}
		if p.Delay.DelayMs < 0 {
			return fmt.Errorf("delay_fault.delay_ms %v is negative", p.Delay.DelayMs)
		}
	}
	if p.Partial != nil {
		if err := checkProbability("partial_fault.probability", p.Partial.Probability); err != nil {
			return err
		}
		if p.Partial.Factor < 0 || p.Partial.Factor > 1 {
			return fmt.Errorf("partial_fault.factor %v out of range [0,1]", p.Partial.Factor)
		}
	}
	return nil
}

func checkProbability(name string, p float32) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("%s %v out of range [0,1]", name, p)
	}
	return nil
}
