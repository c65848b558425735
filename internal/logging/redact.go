// internal/logging/redact.go
package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/syllabusd/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// Secret creates a field for a config.Secret that records only its length.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString creates a field with the value replaced by its length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder wraps a zapcore.Encoder and masks sensitive keys and
// values that match configured patterns. Keys match by substring, so
// "openai_api_key" is caught by "api_key".
type RedactingEncoder struct {
	zapcore.Encoder
	fields   []string
	patterns []*regexp.Regexp
}

// NewRedactingEncoder wraps base with cfg's rules.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}

	fields := make([]string, 0, len(cfg.Fields))
	for _, f := range cfg.Fields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			fields = append(fields, f)
		}
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		if len(p) > 200 {
			return nil, fmt.Errorf("redaction pattern too long (max 200 chars): %q", p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &RedactingEncoder{Encoder: base, fields: fields, patterns: patterns}, nil
}

func (e *RedactingEncoder) sensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, f := range e.fields {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}

// maskValue replaces pattern matches inside val, keeping the rest of the
// text readable.
func (e *RedactingEncoder) maskValue(val string) string {
	for _, re := range e.patterns {
		val = re.ReplaceAllString(val, redacted)
	}
	return val
}

// AddString redacts sensitive keys and masks secret-shaped substrings.
func (e *RedactingEncoder) AddString(key, val string) {
	if e.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddString(key, e.maskValue(val))
}

// AddByteString redacts sensitive keys and masks secret-shaped substrings.
func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.sensitiveKey(key) {
		e.Encoder.AddByteString(key, []byte(redacted))
		return
	}
	e.Encoder.AddByteString(key, []byte(e.maskValue(string(val))))
}

// AddBinary redacts sensitive keys.
func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.sensitiveKey(key) {
		e.Encoder.AddBinary(key, []byte(redacted))
		return
	}
	e.Encoder.AddBinary(key, val)
}

// AddReflected redacts the whole value when the key is sensitive.
func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// AddArray redacts the whole array when the key is sensitive.
func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

// AddObject redacts the whole object when the key is sensitive.
func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitiveKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// EncodeEntry redacts the entry message and per-call fields before handing
// them to the wrapped encoder, which encodes them on its own clone and never
// calls back into the Add methods above.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if len(e.fields) == 0 && len(e.patterns) == 0 {
		return e.Encoder.EncodeEntry(ent, fields)
	}
	ent.Message = e.maskValue(ent.Message)
	masked := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		masked[i] = e.redactField(f)
	}
	return e.Encoder.EncodeEntry(ent, masked)
}

func (e *RedactingEncoder) redactField(f zapcore.Field) zapcore.Field {
	if e.sensitiveKey(f.Key) {
		return zap.String(f.Key, redacted)
	}
	switch f.Type {
	case zapcore.StringType:
		f.String = e.maskValue(f.String)
	case zapcore.ByteStringType:
		if b, ok := f.Interface.([]byte); ok {
			return zap.ByteString(f.Key, []byte(e.maskValue(string(b))))
		}
	case zapcore.StringerType:
		if s, ok := f.Interface.(fmt.Stringer); ok {
			return zap.String(f.Key, e.maskValue(s.String()))
		}
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok && err != nil {
			return zap.String(f.Key, e.maskValue(err.Error()))
		}
	}
	return f
}

// Clone creates a copy of the encoder.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:  e.Encoder.Clone(),
		fields:   e.fields,
		patterns: e.patterns,
	}
}
