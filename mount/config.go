package mount

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Policy selects how a mount resolves writes to a path that already has
// content not owned by the current writer.
type Policy string

const (
	// PolicyIgnore silently reuses the path, overwriting what is there.
	PolicyIgnore Policy = "ignore"
	// PolicyAuto appends an incrementing index to the stem until the path
	// is unused.
	PolicyAuto Policy = "auto"
	// PolicyPrompt asks the mount's Prompter for a replacement name.
	PolicyPrompt Policy = "prompt"
	// PolicyQuit cancels the operation with a UserQuitError.
	PolicyQuit Policy = "quit"
)

// valid reports whether the policy is one of the known values.
func (p Policy) valid() bool {
	switch p {
	case PolicyIgnore, PolicyAuto, PolicyPrompt, PolicyQuit:
		return true
	}
	return false
}

// Config holds the mount-level settings read from <root>/config.yaml.
type Config struct {
	// OnCollision is the default collision policy.
	OnCollision Policy `yaml:"on_collision"`
	// DefaultSuffix is used for payload files whose type declares no
	// extension.
	DefaultSuffix string `yaml:"default_suffix"`
	// IgnoreFiles controls whether per-directory ignore lists are written.
	IgnoreFiles *bool `yaml:"ignore_files"`
}

// DefaultConfig returns the settings used when no config file is present.
func DefaultConfig() Config {
	on := true
	return Config{
		OnCollision:   PolicyIgnore,
		DefaultSuffix: ".sto",
		IgnoreFiles:   &on,
	}
}

// ignoreFiles resolves the optional toggle.
func (c Config) ignoreFiles() bool {
	return c.IgnoreFiles == nil || *c.IgnoreFiles
}

// LoadConfig reads <root>/config.yaml, filling unset fields with defaults.
// A missing file yields the defaults.
func LoadConfig(root string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(filepath.Join(root, "config.yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read mount config: %w", err)
	}
	loaded := Config{}
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return cfg, fmt.Errorf("parse mount config: %w", err)
	}
	if loaded.OnCollision != "" {
		if !loaded.OnCollision.valid() {
			return cfg, fmt.Errorf("parse mount config: unknown collision policy %q", loaded.OnCollision)
		}
		cfg.OnCollision = loaded.OnCollision
	}
	if loaded.DefaultSuffix != "" {
		cfg.DefaultSuffix = loaded.DefaultSuffix
	}
	if loaded.IgnoreFiles != nil {
		cfg.IgnoreFiles = loaded.IgnoreFiles
	}
	return cfg, nil
}
