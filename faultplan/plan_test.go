package faultplan

import "testing"

func TestDefaultPlanDisabled(t *testing.T) {
	p := Default()
	if p.Enabled {
		t.Fatal("Default() plan must start disabled")
	}
	if p.Error != nil || p.Corruption != nil || p.Delay != nil {
		t.Fatal("Default() plan must start with no fault categories configured")
	}
}

func TestValidateRejectsOutOfRangeProbability(t *testing.T) {
	p := Default()
	p.Error = DefaultError()
	p.Error.Probability = 1.5
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for probability > 1")
	}
}

func TestValidateRejectsOutOfRangePercentage(t *testing.T) {
	p := Default()
	p.Corruption = DefaultCorruption()
	p.Corruption.Percentage = 150
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for percentage > 100")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	p := Default()
	p.Error = DefaultError()
	p.Corruption = DefaultCorruption()
	p.Delay = DefaultDelay()
	p.Timing = DefaultTiming()
	p.Count = DefaultCount()
	p.Partial = DefaultPartial()
	if err := p.Validate(); err != nil {
		t.Fatalf("defaults should validate cleanly: %v", err)
	}
}
