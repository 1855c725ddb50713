package screenerconfig

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/wonny/canslim-screener/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// reserved source labels resolved by the universe provider itself
var reservedSources = map[string]bool{"sp500": true, "nasdaq100": true, "all": true}

// MaxTopN bounds the ranking event payload
const MaxTopN = 500

// scheduleParser matches the scheduler's cron.WithSeconds() parser
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks all required constraints and normalizes symbol case
func Validate(cfg *Config) error {
	// === Benchmarks ===
	cfg.Benchmarks.Default = strings.ToUpper(strings.TrimSpace(cfg.Benchmarks.Default))
	if cfg.Benchmarks.Default == "" {
		return ValidationError{"benchmarks.default", "required"}
	}
	cfg.Benchmarks.Symbols = contracts.NormalizeSymbols(cfg.Benchmarks.Symbols)
	if !contains(cfg.Benchmarks.Symbols, cfg.Benchmarks.Default) {
		return ValidationError{"benchmarks.symbols", fmt.Sprintf("must include default %s", cfg.Benchmarks.Default)}
	}

	// === Universe ===
	seen := make(map[string]bool)
	for i := range cfg.Universe.Lists {
		l := &cfg.Universe.Lists[i]
		field := fmt.Sprintf("universe.lists[%d]", i)

		l.Name = strings.ToLower(strings.TrimSpace(l.Name))
		if l.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if reservedSources[l.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("%q is a built-in source", l.Name)}
		}
		if seen[l.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate list %q", l.Name)}
		}
		seen[l.Name] = true

		l.Symbols = contracts.NormalizeSymbols(l.Symbols)
		if len(l.Symbols) == 0 {
			return ValidationError{field + ".symbols", "must not be empty"}
		}
	}

	src := strings.ToLower(strings.TrimSpace(cfg.Universe.DefaultSource))
	if src == "" {
		return ValidationError{"universe.default_source", "required"}
	}
	if !reservedSources[src] && !seen[src] {
		return ValidationError{"universe.default_source", fmt.Sprintf("unknown source %q", src)}
	}
	cfg.Universe.DefaultSource = src

	// === Schedules ===
	if cfg.Schedules.Enabled {
		if _, err := scheduleParser.Parse(cfg.Schedules.Benchmark); err != nil {
			return ValidationError{"schedules.benchmark", err.Error()}
		}
		if _, err := scheduleParser.Parse(cfg.Schedules.Refresh); err != nil {
			return ValidationError{"schedules.refresh", err.Error()}
		}
	}

	// === Ranking ===
	if cfg.Ranking.TopN < 1 || cfg.Ranking.TopN > MaxTopN {
		return ValidationError{"ranking.top_n", fmt.Sprintf("must be in [1, %d]", MaxTopN)}
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
