// Package config loads YAML configuration files with environment variable
// expansion and optional struct validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that can check their own
// invariants after decoding.
type Validator interface {
	Validate() error
}

// Load reads a YAML file into target. ${VAR} references in the file are
// expanded from the environment before decoding, and unknown YAML keys are
// rejected so typos surface at startup rather than as silently-ignored
// settings. If target implements Validator, validation runs after decoding.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", filename, err)
	}
	if err := decode(bytes.NewReader([]byte(os.ExpandEnv(string(data)))), target); err != nil {
		return fmt.Errorf("config: parse %s: %w", filename, err)
	}
	return validate(target)
}

// LoadWithDefaults loads filename, falling back to defaultFile when
// filename does not exist.
func LoadWithDefaults[T any](filename, defaultFile string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if defaultFile == "" {
			return fmt.Errorf("config: file not found: %s", filename)
		}
		return Load(defaultFile, target)
	}
	return Load(filename, target)
}

func decode[T any](r io.Reader, target *T) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func validate[T any](target *T) error {
	v, ok := any(target).(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}
