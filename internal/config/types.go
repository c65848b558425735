package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that decodes from "90s"-style text, so snippet
// and shutdown timeouts read the same in YAML and SYLLABUSD_* variables.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// redacted replaces a set Secret wherever it is printed or serialized.
const redacted = "[REDACTED]"

// Secret holds the oracle API key. It prints and serializes masked; only
// Value exposes the key, and only the oracle transport should call it.
type Secret string

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string   { return s.masked() }
func (s Secret) GoString() string { return "Secret(" + redacted + ")" }

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a key was configured.
func (s Secret) IsSet() bool { return s != "" }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.masked()) }
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.masked()), nil }

// UnmarshalJSON decodes the mask itself to an unset secret, so a dumped
// config never turns "[REDACTED]" into an API key.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == redacted {
		raw = ""
	}
	*s = Secret(raw)
	return nil
}

// UnmarshalText accepts raw values from YAML and the environment.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
