// Package config loads and persists user settings.
//
// Settings live in a TOML file under the platform config directory. A .env
// file in the working directory may provide TRANSCRIPTOR_API_KEY or
// GROQ_API_KEY, which take precedence over the stored key.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL          = "https://api.groq.com/openai/v1"
	DefaultModel            = "whisper-large-v3-turbo"
	DefaultLanguage         = "es"
	DefaultUpdateRepository = "DonMrMango/transcriptor"
)

// APIKeyEnvVars are checked in order before the stored key.
var APIKeyEnvVars = []string{"TRANSCRIPTOR_API_KEY", "GROQ_API_KEY"}

type Settings struct {
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	Model            string `toml:"model"`
	Language         string `toml:"language"`
	Backend          string `toml:"backend"`
	Input            string `toml:"input"`
	UpdateRepository string `toml:"update_repository"`
}

func Defaults() Settings {
	return Settings{
		BaseURL:          DefaultBaseURL,
		Model:            DefaultModel,
		Language:         DefaultLanguage,
		Backend:          "auto",
		UpdateRepository: DefaultUpdateRepository,
	}
}

// Load reads settings from path. A missing file yields the defaults; fields
// absent from the file keep their default values.
func Load(path string) (Settings, error) {
	settings := Defaults()
	if _, err := toml.DecodeFile(path, &settings); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return settings, nil
}

// Save writes settings to path with owner-only permissions. The API key is
// stored in plain text, like any other dotfile credential.
func Save(path string, settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := toml.NewEncoder(tmp).Encode(settings); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("move config into place: %w", err)
	}
	return nil
}

// SaveAPIKey updates only the stored API key.
func SaveAPIKey(path, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("api key must not be empty")
	}

	settings, err := Load(path)
	if err != nil {
		return err
	}
	settings.APIKey = apiKey
	return Save(path, settings)
}

// LoadEnv loads the first existing .env file among paths. Variables already set
// in the environment are not overridden.
func LoadEnv(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = []string{".env", ".env.local"}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("load %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

// ResolveAPIKey returns the key from the environment if set, otherwise the
// stored one.
func (s Settings) ResolveAPIKey() string {
	for _, name := range APIKeyEnvVars {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(s.APIKey)
}

// MaskedAPIKey keeps the first ten characters of apiKey for display.
func MaskedAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 10 {
		return strings.Repeat("*", len(apiKey))
	}
	return apiKey[:10] + "..."
}
