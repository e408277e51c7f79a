// Package config loads the INI-style configuration file described in
// spec.md §6, merges it with environment variables and built-in
// defaults, and produces a faultplan.Plan plus the global mount settings.
//
// No INI-parsing library was found anywhere in the retrieval pack (no
// ini.v1/go-ini/gcfg/toml usage); this reader is grounded instead on the
// original driver's own config_load_from_file in config.c, which performs
// the identical line-by-line, section/key=value scan in C.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/faultfs/faultfs/faultop"
	"github.com/faultfs/faultfs/faultplan"
)

// Config is the fully resolved set of global settings plus fault plan for
// a mount.
type Config struct {
	MountPoint  string
	StoragePath string
	LogFile     string
	LogLevel    string

	Plan *faultplan.Plan
}

// Defaults returns the built-in defaults used when no config file,
// environment variable, or CLI flag overrides them.
func Defaults() *Config {
	return &Config{
		MountPoint:  "",
		StoragePath: "/var/faultfs-storage",
		LogFile:     "stdout",
		LogLevel:    "2",
		Plan:        faultplan.Default(),
	}
}

// ApplyEnv overlays the MOUNT_POINT/STORAGE_PATH/LOG_FILE/LOG_LEVEL
// environment variables onto c, if set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MOUNT_POINT"); v != "" {
		c.MountPoint = v
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		c.StoragePath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Load reads an INI file from path and merges it on top of c in place.
// Config-file values take precedence over environment variables but not
// over CLI flags (the caller applies CLI overrides after Load returns).
func Load(path string, c *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()
	return parse(f, c)
}

type section int

const (
	sectionGlobal section = iota
	sectionError
	sectionCorruption
	sectionDelay
	sectionTiming
	sectionCount
	sectionPartial
)

func parse(r io.Reader, c *Config) error {
	scanner := bufio.NewScanner(r)
	cur := sectionGlobal

	for scanner.Scan() {
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			s, ok := sectionFor(name)
			if !ok {
				continue // unknown section: ignored, not an error
			}
			cur = s
			initSection(c, s)
			continue
		}

		key, value, ok := splitKV(line)
		if !ok {
			continue
		}

		if err := applyKV(c, cur, key, value); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: reading: %w", err)
	}
	return c.Plan.Validate()
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func splitKV(line string) (key, value string, ok bool) {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

func sectionFor(name string) (section, bool) {
	switch strings.ToLower(name) {
	case "error_fault":
		return sectionError, true
	case "corruption_fault":
		return sectionCorruption, true
	case "delay_fault":
		return sectionDelay, true
	case "timing_fault":
		return sectionTiming, true
	case "operation_count_fault":
		return sectionCount, true
	case "partial_fault":
		return sectionPartial, true
	}
	return 0, false
}

// initSection installs the category's defaults the first time its
// section header is seen, matching config_load_from_file's behavior of
// default-initializing a fault struct on encountering its header before
// any keys within it are read.
func initSection(c *Config, s section) {
	switch s {
	case sectionError:
		if c.Plan.Error == nil {
			c.Plan.Error = faultplan.DefaultError()
		}
	case sectionCorruption:
		if c.Plan.Corruption == nil {
			c.Plan.Corruption = faultplan.DefaultCorruption()
		}
	case sectionDelay:
		if c.Plan.Delay == nil {
			c.Plan.Delay = faultplan.DefaultDelay()
		}
	case sectionTiming:
		if c.Plan.Timing == nil {
			c.Plan.Timing = faultplan.DefaultTiming()
		}
	case sectionCount:
		if c.Plan.Count == nil {
			c.Plan.Count = faultplan.DefaultCount()
		}
	case sectionPartial:
		if c.Plan.Partial == nil {
			c.Plan.Partial = faultplan.DefaultPartial()
		}
	}
}

func applyKV(c *Config, s section, key, value string) error {
	switch s {
	case sectionGlobal:
		return applyGlobalKV(c, key, value)
	case sectionError:
		return applyErrorKV(c.Plan.Error, key, value)
	case sectionCorruption:
		return applyCorruptionKV(c.Plan.Corruption, key, value)
	case sectionDelay:
		return applyDelayKV(c.Plan.Delay, key, value)
	case sectionTiming:
		return applyTimingKV(c.Plan.Timing, key, value)
	case sectionCount:
		return applyCountKV(c.Plan.Count, key, value)
	case sectionPartial:
		return applyPartialKV(c.Plan.Partial, key, value)
	}
	return nil
}

func applyGlobalKV(c *Config, key, value string) error {
	switch strings.ToLower(key) {
	case "mount_point":
		c.MountPoint = value
	case "storage_path":
		c.StoragePath = value
	case "log_file":
		c.LogFile = value
	case "log_level":
		c.LogLevel = value
	case "enable_fault_injection":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: enable_fault_injection: %w", err)
		}
		c.Plan.Enabled = b
	}
	// Unknown global keys are ignored, not an error.
	return nil
}

func applyErrorKV(f *faultplan.ErrorFault, key, value string) error {
	switch strings.ToLower(key) {
	case "probability":
		p, err := parseProbability(value)
		if err != nil {
			return fmt.Errorf("config: error_fault.probability: %w", err)
		}
		f.Probability = p
	case "error_code":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: error_fault.error_code: %w", err)
		}
		if n < 0 {
			n = -n
		}
		f.Errno = syscall.Errno(n)
	case "operations":
		m, err := faultop.ParseMask(value)
		if err != nil {
			return fmt.Errorf("config: error_fault.operations: %w", err)
		}
		f.Mask = m
	}
	return nil
}

func applyCorruptionKV(f *faultplan.CorruptionFault, key, value string) error {
	switch strings.ToLower(key) {
	case "probability":
		p, err := parseProbability(value)
		if err != nil {
			return fmt.Errorf("config: corruption_fault.probability: %w", err)
		}
		f.Probability = p
	case "percentage":
		p, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return fmt.Errorf("config: corruption_fault.percentage: %w", err)
		}
		f.Percentage = float32(p)
	case "silent":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: corruption_fault.silent: %w", err)
		}
		f.Silent = b
	case "operations":
		m, err := faultop.ParseMask(value)
		if err != nil {
			return fmt.Errorf("config: corruption_fault.operations: %w", err)
		}
		f.Mask = m
	}
	return nil
}

func applyDelayKV(f *faultplan.DelayFault, key, value string) error {
	switch strings.ToLower(key) {
	case "probability":
		p, err := parseProbability(value)
		if err != nil {
			return fmt.Errorf("config: delay_fault.probability: %w", err)
		}
		f.Probability = p
	case "delay_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: delay_fault.delay_ms: %w", err)
		}
		f.DelayMs = n
	case "operations":
		m, err := faultop.ParseMask(value)
		if err != nil {
			return fmt.Errorf("config: delay_fault.operations: %w", err)
		}
		f.Mask = m
	}
	return nil
}

func applyTimingKV(f *faultplan.TimingFault, key, value string) error {
	switch strings.ToLower(key) {
	case "enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: timing_fault.enabled: %w", err)
		}
		f.Enabled = b
	case "after_minutes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: timing_fault.after_minutes: %w", err)
		}
		f.AfterMinutes = n
	case "operations":
		m, err := faultop.ParseMask(value)
		if err != nil {
			return fmt.Errorf("config: timing_fault.operations: %w", err)
		}
		f.Mask = m
	}
	return nil
}

func applyCountKV(f *faultplan.CountFault, key, value string) error {
	switch strings.ToLower(key) {
	case "enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: operation_count_fault.enabled: %w", err)
		}
		f.Enabled = b
	case "every_n_operations", "every_n":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("config: operation_count_fault.every_n: %w", err)
		}
		f.EveryN = n
	case "after_bytes":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("config: operation_count_fault.after_bytes: %w", err)
		}
		f.AfterBytes = n
	case "operations":
		m, err := faultop.ParseMask(value)
		if err != nil {
			return fmt.Errorf("config: operation_count_fault.operations: %w", err)
		}
		f.Mask = m
	}
	return nil
}

func applyPartialKV(f *faultplan.PartialFault, key, value string) error {
	switch strings.ToLower(key) {
	case "probability":
		p, err := parseProbability(value)
		if err != nil {
			return fmt.Errorf("config: partial_fault.probability: %w", err)
		}
		f.Probability = p
	case "factor":
		p, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return fmt.Errorf("config: partial_fault.factor: %w", err)
		}
		f.Factor = float32(p)
	case "operations":
		m, err := faultop.ParseMask(value)
		if err != nil {
			return fmt.Errorf("config: partial_fault.operations: %w", err)
		}
		f.Mask = m
	}
	return nil
}

func parseProbability(value string) (float32, error) {
	p, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return 0, err
	}
	return float32(p), nil
}

// String renders the effective configuration for a startup log line,
// continuing the original driver's config_print diagnostic dump.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mount_point=%s storage_path=%s log_file=%s log_level=%s fault_injection=%v",
		c.MountPoint, c.StoragePath, c.LogFile, c.LogLevel, c.Plan.Enabled)
	if c.Plan.Error != nil {
		fmt.Fprintf(&b, " error_fault{p=%v errno=%v ops=%s}", c.Plan.Error.Probability, c.Plan.Error.Errno, c.Plan.Error.Mask)
	}
	if c.Plan.Corruption != nil {
		fmt.Fprintf(&b, " corruption_fault{p=%v pct=%v silent=%v ops=%s}", c.Plan.Corruption.Probability, c.Plan.Corruption.Percentage, c.Plan.Corruption.Silent, c.Plan.Corruption.Mask)
	}
	if c.Plan.Delay != nil {
		fmt.Fprintf(&b, " delay_fault{p=%v ms=%v ops=%s}", c.Plan.Delay.Probability, c.Plan.Delay.DelayMs, c.Plan.Delay.Mask)
	}
	if c.Plan.Timing != nil {
		fmt.Fprintf(&b, " timing_fault{enabled=%v after_min=%v ops=%s}", c.Plan.Timing.Enabled, c.Plan.Timing.AfterMinutes, c.Plan.Timing.Mask)
	}
	if c.Plan.Count != nil {
		fmt.Fprintf(&b, " operation_count_fault{enabled=%v every_n=%v after_bytes=%v ops=%s}", c.Plan.Count.Enabled, c.Plan.Count.EveryN, c.Plan.Count.AfterBytes, c.Plan.Count.Mask)
	}
	if c.Plan.Partial != nil {
		fmt.Fprintf(&b, " partial_fault{p=%v factor=%v ops=%s}", c.Plan.Partial.Probability, c.Plan.Partial.Factor, c.Plan.Partial.Mask)
	}
	return b.String()
}
