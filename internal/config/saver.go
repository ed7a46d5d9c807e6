package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/knadh/koanf/parsers/yaml"
)

// Save validates cfg and writes it as YAML with a backup and an atomic rename.
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		var invalidErr *InvalidConfigError
		if errors.As(err, &invalidErr) {
			invalidErr.Path = path
		}
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check write permissions before attempting write
	if err := checkWritePermission(path); err != nil {
		return err
	}

	if err := backupConfig(path); err != nil {
		// First run has nothing to back up; other failures are not fatal.
		fmt.Fprintf(os.Stderr, "Warning: failed to create backup: %v\n", err)
	}

	data, err := yaml.Parser().Marshal(cfg.toMap())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return atomicWrite(path, data)
}

// toMap renders the config with the same keys the loader reads.
func (c *Config) toMap() map[string]interface{} {
	return map[string]interface{}{
		"storage": map[string]interface{}{
			"path": c.Storage.Path,
			"seed": c.Storage.Seed,
		},
		"engine": map[string]interface{}{
			"short_circuit_threshold": c.Engine.ShortCircuitThreshold,
			"combine_threshold":       c.Engine.CombineThreshold,
			"promote_threshold":       c.Engine.PromoteThreshold,
			"candidate_limit":         c.Engine.CandidateLimit,
			"related_limit":           c.Engine.RelatedLimit,
			"analysis_timeout":        c.Engine.AnalysisTimeout.String(),
		},
		"openai": map[string]interface{}{
			"api_key":             c.OpenAI.APIKey,
			"base_url":            c.OpenAI.BaseURL,
			"model":               c.OpenAI.Model,
			"transcription_model": c.OpenAI.TranscriptionModel,
			"max_retries":         c.OpenAI.MaxRetries,
			"retry_delay":         c.OpenAI.RetryDelay.String(),
			"requests_per_minute": c.OpenAI.RequestsPerMinute,
		},
		"websearch": map[string]interface{}{
			"api_key":  c.WebSearch.APIKey,
			"endpoint": c.WebSearch.Endpoint,
			"results":  c.WebSearch.Results,
			"timeout":  c.WebSearch.Timeout.String(),
		},
		"http": map[string]interface{}{
			"host": c.HTTP.Host,
			"port": c.HTTP.Port,
		},
		"log": map[string]interface{}{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
	}
}

func backupConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // First run, no backup needed
		}
		return err
	}
	return os.WriteFile(path+".bak", data, 0o600)
}

func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// checkWritePermission verifies we can write to the config path
func checkWritePermission(path string) error {
	dir := filepath.Dir(path)

	if err := checkDirectoryWritable(dir); err != nil {
		return &PermissionError{
			Path:    dir,
			Op:      "write",
			Fix:     getWritePermissionFix(dir),
			Details: "Cannot write to config directory",
		}
	}

	// If file exists, check if we can overwrite it
	if _, err := os.Stat(path); err == nil {
		if err := checkFileWritable(path); err != nil {
			return &PermissionError{
				Path:    path,
				Op:      "write",
				Fix:     getWritePermissionFix(path),
				Details: "Config file is read-only",
			}
		}
	}

	return nil
}

func checkDirectoryWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func checkFileWritable(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	return f.Close()
}

func getWritePermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Grant 'Write' permission", path)
	default: // unix-like
		return fmt.Sprintf("Run: chmod u+w %s", path)
	}
}
