package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix scopes the environment variables read by Load.
	EnvPrefix = "SYLLABUSD_"
)

// DefaultPath returns ~/.config/syllabusd/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "syllabusd", "config.yaml"), nil
}

// Load reads configuration from Default, then the YAML file at configPath
// (if it exists), then SYLLABUSD_* environment variables.
//
// An empty configPath means DefaultPath. The file must live under
// ~/.config/syllabusd/ or /etc/syllabusd/, be at most 1MB, and have 0600 or
// 0400 permissions.
//
// Environment variables drop the prefix and split on the first underscore:
//
//	SYLLABUSD_ORACLE_API_KEY        -> oracle.api_key
//	SYLLABUSD_EXTRACTION_WINDOW_AFTER -> extraction.window_after
//	SYLLABUSD_SERVER_HTTP_PORT      -> server.http_port
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps SYLLABUSD_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// readConfigFile opens path once and validates the open descriptor, so the
// checked file is the file that is read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// EnsureConfigDir creates ~/.config/syllabusd with 0700 permissions.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", "syllabusd")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath checks that path resolves inside an allowed directory.
// It runs whether or not the file exists.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolved = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	allowed := []string{
		filepath.Join(home, ".config", "syllabusd"),
		"/etc/syllabusd",
	}
	for _, dir := range allowed {
		if resolved == dir || strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/syllabusd/ or /etc/syllabusd/")
}

// validateConfigFileProperties checks permissions (0600 or 0400, skipped on
// Windows) and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
