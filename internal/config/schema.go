package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	// TypeString is a plain string value (the default for all config values).
	TypeString OptionType = "string"
	// TypeBool is a boolean value (true/false/yes/no/1/0/on/off).
	TypeBool OptionType = "bool"
	// TypeInt is an integer value.
	TypeInt OptionType = "int"
	// TypeFloat is a decimal value.
	TypeFloat OptionType = "float"
	// TypeDuration is a Go time.Duration value (e.g. "30s", "5m", "1h").
	TypeDuration OptionType = "duration"
)

// ConfigOption declares a single configuration option with its type, default,
// documentation, and environment variable override.
type ConfigOption struct {
	// Key is the option name as it appears in the config file (kebab-case).
	Key string
	// Type is the expected value type for validation.
	Type OptionType
	// Default is the default value as a string, or "" for no default.
	Default string
	// Description is a human-readable description of the option.
	Description string
	// Section is "" for global options, or a command/section name.
	Section string
	// EnvVar is the environment variable that overrides this option, or "".
	EnvVar string
}

// ConfigSchema declares the expected configuration options for the application.
// It is used for validation, documentation, typed getters, and env var mapping.
type ConfigSchema struct {
	options []*ConfigOption
	// byKey indexes global options by key for fast lookup.
	byKey map[string]*ConfigOption
	// bySection indexes command/section options by section then key.
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds a ConfigOption to the schema. Duplicate keys within the same
// section are silently overwritten (last registration wins).
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
	} else {
		if s.bySection[opt.Section] == nil {
			s.bySection[opt.Section] = make(map[string]*ConfigOption)
		}
		s.bySection[opt.Section][opt.Key] = ref
	}
}

// RegisterAll adds multiple ConfigOptions to the schema.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the ConfigOption for a key in a given section ("" for global).
// Returns nil if the key is not registered.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	if sec, ok := s.bySection[section]; ok {
		return sec[key]
	}
	return nil
}

// IsKnown returns true if the key is registered in the given section.
// For command sections, global keys are also considered known (they can
// appear in command sections and fall back to the global value).
func (s *ConfigSchema) IsKnown(section, key string) bool {
	if section == "" {
		return s.byKey[key] != nil
	}
	// Command section: check section-specific, then global.
	if sec, ok := s.bySection[section]; ok {
		if sec[key] != nil {
			return true
		}
	}
	return s.byKey[key] != nil
}

// GlobalOptions returns all registered global options (Section == "").
func (s *ConfigSchema) GlobalOptions() []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == "" {
			out = append(out, *o)
		}
	}
	return out
}

// SectionOptions returns all registered options for a specific section.
func (s *ConfigSchema) SectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns a sorted list of all registered non-empty section names.
func (s *ConfigSchema) Sections() []string {
	return slices.Sorted(maps.Keys(s.bySection))
}

// Resolve returns the effective value for a global config key by checking,
// in order: (1) the environment variable declared in the schema for this key,
// (2) the config value, (3) the schema default. Returns "" if the key is not
// found anywhere.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	opt := s.Lookup("", key)
	// Check env var override from schema.
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	// Check config value.
	v, ok := c.GetGlobalOption(key)
	if ok {
		return v
	}
	// Fall back to schema default.
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig checks a loaded Config against the schema and returns a list
// of human-readable issues (empty if the config is valid). Validation includes:
//   - Unknown global options (not in schema)
//   - Unknown command options (not in schema for that section, and not global)
//   - Type mismatches for options with declared types
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	// Validate global options.
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	// Validate command-section options.
	for section, opts := range c.Commands {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			// Find the option definition (section-specific or global fallback).
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if opt != nil {
				if err := validateType(opt.Type, value); err != nil {
					issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}

// validateType checks that a string value matches the expected OptionType.
func validateType(t OptionType, value string) error {
	_, err := parseValue(t, value)
	return err
}

// parseValue converts value to the Go type for t: string, bool, int,
// float64 or time.Duration.
func parseValue(t OptionType, value string) (any, error) {
	switch t {
	case TypeString, "":
		return value, nil
	case TypeBool:
		b, err := parseBool(value)
		if err != nil {
			return nil, fmt.Errorf("expected bool, got %q", value)
		}
		return b, nil
	case TypeInt:
		i, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("expected int, got %q", value)
		}
		return i, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("expected float, got %q", value)
		}
		return f, nil
	case TypeDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("expected duration, got %q", value)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown option type %q", t)
	}
}

// --- Help text generation ---

// FormatHelp returns a formatted, human-readable reference of all registered
// options in the schema, grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder

	// Global options first.
	globals := s.GlobalOptions()
	if len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}

	// Section options.
	for _, sec := range s.Sections() {
		opts := s.SectionOptions(sec)
		if len(opts) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("\n[%s] Options:\n", sec))
		for _, o := range opts {
			writeOptionHelp(&b, o)
		}
	}

	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	b.WriteString(fmt.Sprintf("  %-35s %s", o.Key, o.Description))
	parts := make([]string, 0, 3)
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, fmt.Sprintf("type: %s", o.Type))
	}
	if o.Default != "" {
		parts = append(parts, fmt.Sprintf("default: %s", o.Default))
	}
	if o.EnvVar != "" {
		parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
	}
	if len(parts) > 0 {
		b.WriteString(fmt.Sprintf(" (%s)", strings.Join(parts, ", ")))
	}
	b.WriteString("\n")
}

// --- Default schema ---

// Option keys.
const (
	KeyLogLevel        = "log.level"
	KeyLogFile         = "log.file"
	KeyMaxExpansions   = "planner.max-expansions"
	KeyWorkers         = "scheduler.workers"
	KeyQueueSize       = "scheduler.queue-size"
	KeyTickInterval    = "scheduler.tick-interval"
	KeyReplanRate      = "scheduler.replan-rate"
	KeyReplanBurst     = "scheduler.replan-burst"
	KeyDecayRate       = "facts.decay-rate"
	KeyMinCertainty    = "facts.min-certainty"
	KeyForgetThreshold = "facts.forget-threshold"
	KeyExprCacheSize   = "expr.cache-size"
	KeySelectorFloor   = "selector.floor"
)

// DefaultSchema returns the canonical schema declaring all known npcplan
// configuration options. This is the single source of truth for option names,
// types, defaults, descriptions, and environment variable overrides.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll(defaultGlobalOptions())
	s.RegisterAll(defaultCommandOptions())
	return s
}

func defaultGlobalOptions() []ConfigOption {
	return []ConfigOption{
		// Logging
		{Key: KeyLogLevel, Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "NPC_LOG_LEVEL"},
		{Key: KeyLogFile, Type: TypeString, Default: "", Description: "Log file path (JSON output)", EnvVar: "NPC_LOG_FILE"},

		// Planning
		{Key: KeyMaxExpansions, Type: TypeInt, Default: "0", Description: "Max nodes expanded per search, 0 for unbounded", EnvVar: "NPC_MAX_EXPANSIONS"},
		{Key: KeySelectorFloor, Type: TypeFloat, Default: "", Description: "Minimum utility a goal needs to be selected"},
		{Key: KeyExprCacheSize, Type: TypeInt, Default: "1000", Description: "Compiled expression cache capacity"},

		// Scheduling
		{Key: KeyWorkers, Type: TypeInt, Default: "2", Description: "Planning worker goroutines", EnvVar: "NPC_WORKERS"},
		{Key: KeyQueueSize, Type: TypeInt, Default: "0", Description: "Max queued planning requests, 0 for unbounded"},
		{Key: KeyTickInterval, Type: TypeDuration, Default: "10ms", Description: "Interval between scheduler ticks"},
		{Key: KeyReplanRate, Type: TypeFloat, Default: "0", Description: "Per-agent replans per second, 0 disables throttling"},
		{Key: KeyReplanBurst, Type: TypeInt, Default: "1", Description: "Per-agent replan burst"},

		// Facts
		{Key: KeyDecayRate, Type: TypeFloat, Default: "0.01", Description: "Certainty lost per simulated minute"},
		{Key: KeyMinCertainty, Type: TypeFloat, Default: "0.2", Description: "Certainty below which a fact is hidden"},
		{Key: KeyForgetThreshold, Type: TypeFloat, Default: "0.05", Description: "Certainty below which decay forgets a fact"},
	}
}

func defaultCommandOptions() []ConfigOption {
	return []ConfigOption{
		// [plan] section
		{Key: "format", Section: "plan", Type: TypeString, Default: "text", Description: "Plan output format: text, yaml"},
		{Key: "execute", Section: "plan", Type: TypeString, Default: "", Description: "Run the plan on a blackboard: tree, reactive"},

		// [select] section
		{Key: "format", Section: "select", Type: TypeString, Default: "text", Description: "Score report format: text, yaml"},

		// [simulate] section
		{Key: "agents", Section: "simulate", Type: TypeInt, Default: "4", Description: "Number of simulated agents"},
		{Key: "timeout", Section: "simulate", Type: TypeDuration, Default: "5s", Description: "Simulation deadline"},
		{Key: "execute", Section: "simulate", Type: TypeString, Default: "", Description: "Run found plans on per-agent blackboards: tree, reactive"},
	}
}
