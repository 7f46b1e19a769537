package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from a YAML file with environment overrides.
type Loader struct {
	path      string
	useDotEnv bool
}

// NewLoader creates a loader for the given config path. An empty path
// falls back to "config.yaml" in the working directory.
func NewLoader(path string) *Loader {
	if path == "" {
		path = "config.yaml"
	}
	return &Loader{
		path:      path,
		useDotEnv: true,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load reads the YAML file over the built-in defaults, then applies
// environment variable overrides. A missing file is not an error.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			// No .env file; system environment applies as-is.
		}
	}

	cfg := DefaultConfig()
	path := l.path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		path = "defaults"
	default:
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}

	applyEnvOverrides(cfg)

	return &Result{
		Config: cfg,
		Path:   path,
	}, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VERSECAST_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VERSECAST_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("VERSECAST_SERVER_SECRET"); v != "" {
		cfg.Server.Secret = v
	}
	if v := os.Getenv("VERSECAST_BIBLE_API_KEY"); v != "" {
		cfg.Bible.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if tts, ok := cfg.TTS["OpenAITTS"]; ok {
			tts.APIKey = v
			cfg.TTS["OpenAITTS"] = tts
		}
	}
	if v := os.Getenv("VERSECAST_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
}
