package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads .env from the working directory, then the settings file,
// creating a commented default when none exists, then environment overrides.
// The data directory is created with 0700 permissions.
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	settingsPath := GetSettingsFilePath()
	if !FileExists(settingsPath) {
		if err := CreateDefaultSettings(); err != nil {
			return nil, fmt.Errorf("failed to create settings: %w", err)
		}
	}

	cfg, err := LoadFrom(settingsPath)
	if err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Ensure data directory has correct permissions (fix if needed)
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from path without replacing ones already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFrom builds a config from defaults, the settings file at path (if it
// exists) and BYOM_* overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" && FileExists(path) {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if cfg.MaxTurns < 1 {
		cfg.MaxTurns = 1
	}
	if cfg.ThinkingMode == "" {
		cfg.ThinkingMode = "tags"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	stringFields := map[string]*string{
		"BYOM_DATA_DIR":          &c.DataDirectory,
		"BYOM_PROVIDER":          &c.Provider,
		"BYOM_MODEL":             &c.Model,
		"BYOM_BASE_URL":          &c.BaseURL,
		"BYOM_API_KEY":           &c.APIKey,
		"BYOM_THINKING_MODE":     &c.ThinkingMode,
		"BYOM_SYSTEM_PROMPT":     &c.SystemPrompt,
		"BYOM_WORKING_DIRECTORY": &c.WorkingDirectory,
		"BYOM_SUBAGENTS_FILE":    &c.SubagentsFile,
	}
	for name, field := range stringFields {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"BYOM_MAX_TURNS":         &c.MaxTurns,
		"BYOM_MAX_OUTPUT_TOKENS": &c.MaxOutputTokens,
		"BYOM_MAX_RETRIES":       &c.MaxRetries,
		"BYOM_TIMEOUT_SECONDS":   &c.TimeoutSeconds,
		"BYOM_THINKING_BUDGET":   &c.ThinkingBudget,
	}
	for name, field := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*field = n
	}

	if v := os.Getenv("BYOM_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BYOM_TEMPERATURE: %w", err)
		}
		c.Temperature = f
	}
	if v := os.Getenv("BYOM_EXTRACT_TEXT_TOOL_CALLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BYOM_EXTRACT_TEXT_TOOL_CALLS: %w", err)
		}
		c.ExtractTextToolCalls = b
	}
	return nil
}

// SaveSettings writes cfg to path.
func SaveSettings(cfg *Config, path string) error {
	if err := EnsureDir(dirOf(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may hold an API key
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	return nil
}

func CreateDefaultSettings() error {
	configDir := GetConfigDir()
	if err := EnsureDir(configDir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settingsPath := GetSettingsFilePath()
	if FileExists(settingsPath) {
		return nil
	}

	if err := os.WriteFile(settingsPath, []byte(DefaultSettingsTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}
