package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// Settings is the typed view of the global options, resolved through the
// schema: environment, then config file, then schema default.
type Settings struct {
	LogLevel slog.Level
	LogFile  string

	MaxExpansions    int
	SelectorFloor    float64
	HasSelectorFloor bool
	ExprCacheSize    int

	Workers      int
	QueueSize    int
	TickInterval time.Duration
	ReplanRate   float64
	ReplanBurst  int

	DecayRate       float64
	MinCertainty    float64
	ForgetThreshold float64
}

// Settings resolves every typed global option. All malformed values are
// reported together.
func (s *ConfigSchema) Settings(c *Config) (Settings, error) {
	r := resolver{s: s, c: c}
	var out Settings

	out.LogLevel = r.level(KeyLogLevel)
	out.LogFile = r.str(KeyLogFile)

	out.MaxExpansions = r.nonNegInt(KeyMaxExpansions)
	if v := r.str(KeySelectorFloor); v != "" {
		out.SelectorFloor = r.float(KeySelectorFloor)
		out.HasSelectorFloor = true
	}
	out.ExprCacheSize = r.nonNegInt(KeyExprCacheSize)

	out.Workers = r.nonNegInt(KeyWorkers)
	out.QueueSize = r.nonNegInt(KeyQueueSize)
	out.TickInterval = r.positiveDuration(KeyTickInterval)
	out.ReplanRate = r.float(KeyReplanRate)
	out.ReplanBurst = r.nonNegInt(KeyReplanBurst)

	out.DecayRate = r.float(KeyDecayRate)
	out.MinCertainty = r.unit(KeyMinCertainty)
	out.ForgetThreshold = r.unit(KeyForgetThreshold)

	return out, r.err
}

type resolver struct {
	s   *ConfigSchema
	c   *Config
	err error
}

func (r *resolver) fail(key, format string, args ...any) {
	r.err = errors.Join(r.err, fmt.Errorf("option %q: "+format, append([]any{key}, args...)...))
}

func (r *resolver) str(key string) string {
	return strings.TrimSpace(r.s.Resolve(r.c, key))
}

// parse resolves key and converts it with the schema's parser. Empty values
// yield ok=false without an error.
func (r *resolver) parse(key string, t OptionType) (v any, ok bool) {
	raw := r.str(key)
	if raw == "" {
		return nil, false
	}
	v, err := parseValue(t, raw)
	if err != nil {
		r.fail(key, "%v", err)
		return nil, false
	}
	return v, true
}

func (r *resolver) nonNegInt(key string) int {
	v, ok := r.parse(key, TypeInt)
	if !ok {
		return 0
	}
	if i := v.(int); i >= 0 {
		return i
	}
	r.fail(key, "must not be negative")
	return 0
}

func (r *resolver) float(key string) float64 {
	v, ok := r.parse(key, TypeFloat)
	if !ok {
		return 0
	}
	f := v.(float64)
	if math.IsNaN(f) {
		r.fail(key, "must be a number")
		return 0
	}
	if f < 0 {
		r.fail(key, "must not be negative")
		return 0
	}
	return f
}

func (r *resolver) unit(key string) float64 {
	f := r.float(key)
	if f > 1 {
		r.fail(key, "must be within [0, 1]")
		return 0
	}
	return f
}

func (r *resolver) positiveDuration(key string) time.Duration {
	v, ok := r.parse(key, TypeDuration)
	if !ok {
		if r.str(key) == "" {
			r.fail(key, "must be positive")
		}
		return 0
	}
	if d := v.(time.Duration); d > 0 {
		return d
	}
	r.fail(key, "must be positive")
	return 0
}

func (r *resolver) level(key string) slog.Level {
	v := r.str(key)
	if v == "" {
		return slog.LevelInfo
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		r.fail(key, "expected log level, got %q", v)
		return slog.LevelInfo
	}
	return l
}
