package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadError describes a configuration file that could not be used.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return e.File + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.File + ": " + e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file over Default().
// Keys missing from the file keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, &LoadError{File: path, Message: "failed to parse YAML", Cause: err}
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, &LoadError{File: path, Message: "failed to parse TOML", Cause: err}
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, &LoadError{File: path, Message: fmt.Sprintf("unknown key %q", undecoded[0].String())}
		}
	default:
		return Config{}, &LoadError{File: path, Message: fmt.Sprintf("unsupported extension %q", ext)}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, &LoadError{File: path, Message: "invalid configuration", Cause: err}
	}
	return cfg, nil
}
