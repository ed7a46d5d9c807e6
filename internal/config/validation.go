package config

import (
	"fmt"
)

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"console": true, "json": true}
)

// Validate checks ranges and enumerations. It returns an *InvalidConfigError
// naming the first offending field.
func (c *Config) Validate() error {
	thresholds := []struct {
		field string
		value float64
	}{
		{"engine.short_circuit_threshold", c.Engine.ShortCircuitThreshold},
		{"engine.combine_threshold", c.Engine.CombineThreshold},
		{"engine.promote_threshold", c.Engine.PromoteThreshold},
	}
	for _, th := range thresholds {
		if th.value < 0 || th.value > 1 {
			return invalid(th.field, fmt.Sprintf("must be between 0 and 1, got %v", th.value))
		}
	}

	if c.Engine.CandidateLimit < 1 {
		return invalid("engine.candidate_limit", fmt.Sprintf("must be at least 1, got %d", c.Engine.CandidateLimit))
	}
	if c.Engine.RelatedLimit < 0 {
		return invalid("engine.related_limit", fmt.Sprintf("must not be negative, got %d", c.Engine.RelatedLimit))
	}
	if c.Engine.AnalysisTimeout <= 0 {
		return invalid("engine.analysis_timeout", "must be positive")
	}
	if c.Storage.Path == "" {
		return invalid("storage.path", "must not be empty")
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return invalid("http.port", fmt.Sprintf("must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	if !validLogLevels[c.Log.Level] {
		return invalid("log.level", fmt.Sprintf("unknown level %q (want debug, info, warn or error)", c.Log.Level))
	}
	if !validLogFormats[c.Log.Format] {
		return invalid("log.format", fmt.Sprintf("unknown format %q (want console or json)", c.Log.Format))
	}
	return nil
}

func invalid(field, message string) *InvalidConfigError {
	return &InvalidConfigError{
		Field:   field,
		Message: message,
		Hint:    "Fix the value in the config file or the SMARTFIX_* environment variable",
	}
}
