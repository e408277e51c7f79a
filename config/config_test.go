package config

import (
	"strings"
	"testing"

	"github.com/faultfs/faultfs/faultop"
)

const sampleINI = `
# global settings
mount_point = /mnt/faultfs
storage_path = /data/backing
log_level = 3
enable_fault_injection = true

[error_fault]
probability = 0.25
error_code = -5
operations = read,write

[corruption_fault]
percentage = 20
silent = false

[delay_fault]
delay_ms = 1000
operations = all
`

func TestParseSampleConfig(t *testing.T) {
	c := Defaults()
	if err := parse(strings.NewReader(sampleINI), c); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if c.MountPoint != "/mnt/faultfs" {
		t.Errorf("MountPoint = %q", c.MountPoint)
	}
	if c.StoragePath != "/data/backing" {
		t.Errorf("StoragePath = %q", c.StoragePath)
	}
	if c.LogLevel != "3" {
		t.Errorf("LogLevel = %q", c.LogLevel)
	}
	if !c.Plan.Enabled {
		t.Error("Plan.Enabled should be true")
	}

	if c.Plan.Error == nil {
		t.Fatal("expected error_fault section to be parsed")
	}
	if c.Plan.Error.Probability != 0.25 {
		t.Errorf("Error.Probability = %v", c.Plan.Error.Probability)
	}
	if c.Plan.Error.Errno != 5 {
		t.Errorf("Error.Errno = %v, want 5 (negative error_code normalized)", c.Plan.Error.Errno)
	}
	if !c.Plan.Error.Mask.Has(faultop.Read) || !c.Plan.Error.Mask.Has(faultop.Write) {
		t.Error("Error.Mask should include read and write")
	}

	if c.Plan.Corruption == nil {
		t.Fatal("expected corruption_fault section to be parsed")
	}
	// probability not set in the file -> section default (0.5) retained.
	if c.Plan.Corruption.Probability != 0.5 {
		t.Errorf("Corruption.Probability = %v, want default 0.5", c.Plan.Corruption.Probability)
	}
	if c.Plan.Corruption.Percentage != 20 {
		t.Errorf("Corruption.Percentage = %v", c.Plan.Corruption.Percentage)
	}
	if c.Plan.Corruption.Silent {
		t.Error("Corruption.Silent should have been overridden to false")
	}

	if c.Plan.Delay == nil {
		t.Fatal("expected delay_fault section to be parsed")
	}
	if c.Plan.Delay.DelayMs != 1000 {
		t.Errorf("Delay.DelayMs = %v", c.Plan.Delay.DelayMs)
	}
	if c.Plan.Delay.Mask != faultop.MaskAll() {
		t.Error("Delay.Mask should be all")
	}

	if c.Plan.Timing != nil || c.Plan.Count != nil || c.Plan.Partial != nil {
		t.Error("sections absent from the file must remain nil")
	}
}

func TestParseIgnoresUnknownSectionAndKey(t *testing.T) {
	c := Defaults()
	const ini = `
[bogus_section]
whatever = 1

mystery_key = 2
`
	if err := parse(strings.NewReader(ini), c); err != nil {
		t.Fatalf("unexpected error for unknown section/key: %v", err)
	}
}

func TestParseRejectsOutOfRangeProbability(t *testing.T) {
	c := Defaults()
	const ini = `
[error_fault]
probability = 3.0
`
	if err := parse(strings.NewReader(ini), c); err == nil {
		t.Fatal("expected validation error for out-of-range probability")
	}
}

func TestParseHandlesInlineComments(t *testing.T) {
	c := Defaults()
	const ini = `
storage_path = /data # trailing comment
`
	if err := parse(strings.NewReader(ini), c); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.StoragePath != "/data" {
		t.Errorf("StoragePath = %q, want /data", c.StoragePath)
	}
}
