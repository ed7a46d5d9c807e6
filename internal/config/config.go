/*
Package config handles loading and saving smartfix configuration.

Configuration is stored as YAML in ~/.smartfix/config.yaml. Every field can be
overridden by an environment variable named SMARTFIX_<SECTION>_<FIELD>, and a
.env file in the working directory is read before the environment.

Schema:

	storage:
	  path: ~/.smartfix/brain.db
	  seed: true
	engine:
	  short_circuit_threshold: 0.8
	  combine_threshold: 0.6
	  promote_threshold: 0.7
	  candidate_limit: 5
	  analysis_timeout: 30s
	openai:
	  api_key: sk-...
	  model: gpt-4o-mini
	websearch:
	  api_key: ...
	http:
	  host: 127.0.0.1
	  port: 8000
	log:
	  level: info
	  format: console
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the root configuration structure.
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Engine    EngineConfig    `koanf:"engine"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	WebSearch WebSearchConfig `koanf:"websearch"`
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
}

// StorageConfig locates the knowledge database.
type StorageConfig struct {
	// Path is the SQLite database file. A leading ~ expands to the home directory.
	Path string `koanf:"path"`

	// Seed inserts the built-in catalog on startup without overwriting learned state.
	Seed bool `koanf:"seed"`
}

// EngineConfig holds the decision thresholds.
type EngineConfig struct {
	ShortCircuitThreshold float64       `koanf:"short_circuit_threshold"`
	CombineThreshold      float64       `koanf:"combine_threshold"`
	PromoteThreshold      float64       `koanf:"promote_threshold"`
	CandidateLimit        int           `koanf:"candidate_limit"`
	RelatedLimit          int           `koanf:"related_limit"`
	AnalysisTimeout       time.Duration `koanf:"analysis_timeout"`
}

// OpenAIConfig configures analysis, transcription and image reading.
type OpenAIConfig struct {
	APIKey             string        `koanf:"api_key"`
	BaseURL            string        `koanf:"base_url"`
	Model              string        `koanf:"model"`
	TranscriptionModel string        `koanf:"transcription_model"`
	MaxRetries         int           `koanf:"max_retries"`
	RetryDelay         time.Duration `koanf:"retry_delay"`
	RequestsPerMinute  int           `koanf:"requests_per_minute"`
}

// WebSearchConfig configures the SerpAPI client.
type WebSearchConfig struct {
	APIKey   string        `koanf:"api_key"`
	Endpoint string        `koanf:"endpoint"`
	Results  int           `koanf:"results"`
	Timeout  time.Duration `koanf:"timeout"`
}

// HTTPConfig configures the HTTP API listener.
type HTTPConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is console or json.
	Format string `koanf:"format"`
}

// NewConfig returns a configuration with every default applied.
func NewConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path: filepath.Join("~", ".smartfix", "brain.db"),
			Seed: true,
		},
		Engine: EngineConfig{
			ShortCircuitThreshold: 0.8,
			CombineThreshold:      0.6,
			PromoteThreshold:      0.7,
			CandidateLimit:        5,
			RelatedLimit:          3,
			AnalysisTimeout:       30 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model:              "gpt-4o-mini",
			TranscriptionModel: "whisper-1",
			MaxRetries:         3,
			RetryDelay:         time.Second,
			RequestsPerMinute:  60,
		},
		WebSearch: WebSearchConfig{
			Endpoint: "https://serpapi.com/search.json",
			Results:  5,
			Timeout:  10 * time.Second,
		},
		HTTP: HTTPConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// GetDefaultConfigPath returns the path to ~/.smartfix/config.yaml.
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".smartfix", "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !hasHomePrefix(path) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

func hasHomePrefix(path string) bool {
	return len(path) >= 2 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator)
}
