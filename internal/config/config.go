// Package config loads optional scan defaults from a YAML file.
// Command-line flags always win over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dupescan/dupescan/internal/units"
)

// File mirrors the YAML defaults file. Byte counts use the same
// B/K/M/G/T suffixes the command line accepts.
type File struct {
	MinSize      string   `yaml:"min_size,omitempty"`
	MaxMemory    string   `yaml:"max_memory,omitempty"`
	MaxBuffer    string   `yaml:"max_buffer,omitempty"`
	MaxOpenFiles int      `yaml:"max_open_files,omitempty"`
	Exclude      []string `yaml:"exclude,omitempty"`
}

// Defaults are the parsed values of a File.
type Defaults struct {
	MinSize      int64
	MaxMemory    int64
	MaxBuffer    int64
	MaxOpenFiles int
	Exclude      []string

	// Set* record which fields the file actually provided.
	SetMinSize   bool
	SetMaxMemory bool
	SetMaxBuffer bool
}

// DefaultPath returns the conventional config location, or "" when
// the file does not exist.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	path := filepath.Join(base, "dupescan", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Load reads and parses a defaults file.
func Load(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Defaults, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	d := &Defaults{
		MaxOpenFiles: file.MaxOpenFiles,
		Exclude:      file.Exclude,
	}

	var parseErr error
	assign := func(text string, target *int64, set *bool, field string) {
		if text == "" || parseErr != nil {
			return
		}
		n, err := units.ParseByteCount(text)
		if err != nil {
			parseErr = fmt.Errorf("%s: %w", field, err)
			return
		}
		*target = n
		*set = true
	}
	assign(file.MinSize, &d.MinSize, &d.SetMinSize, "min_size")
	assign(file.MaxMemory, &d.MaxMemory, &d.SetMaxMemory, "max_memory")
	assign(file.MaxBuffer, &d.MaxBuffer, &d.SetMaxBuffer, "max_buffer")
	if parseErr != nil {
		return nil, parseErr
	}
	return d, nil
}
