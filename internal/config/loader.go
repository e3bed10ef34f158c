package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfigInvalid wraps every validation/parse failure reported at once.
type ErrConfigInvalid struct {
	Errors []error
}

func (e *ErrConfigInvalid) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("config invalid: %s", strings.Join(msgs, "; "))
}

// DefaultPath returns ~/.config/lazydev/config.yaml, honoring
// $LAZYDEV_CONFIG if set.
func DefaultPath() string {
	if p := os.Getenv("LAZYDEV_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "lazydev", "config.yaml")
	}
	return filepath.Join(home, ".config", "lazydev", "config.yaml")
}

// Load reads, parses, defaults, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML bytes into a validated Config, collecting every
// validation error before returning rather than failing on the first.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{Settings: DefaultSettings(), Projects: map[string]*Project{}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ErrConfigInvalid{Errors: []error{fmt.Errorf("yaml parse: %w", err)}}
	}

	applySettingsDefaults(&cfg.Settings)

	var errs []error
	for key, p := range cfg.Projects {
		if p.Name == "" {
			p.Name = key
		}
		if p.Name != key {
			errs = append(errs, fmt.Errorf("project %q: name field %q does not match map key", key, p.Name))
		}
		if !projectNamePattern.MatchString(p.Name) {
			errs = append(errs, fmt.Errorf("project %q: invalid name, must match %s", key, projectNamePattern.String()))
		}
		if len(p.Name) > 63 {
			errs = append(errs, fmt.Errorf("project %q: name exceeds 63 characters", key))
		}
		if p.Cwd == "" {
			errs = append(errs, fmt.Errorf("project %q: cwd is required", key))
		} else {
			expanded, err := expandHome(p.Cwd)
			if err != nil {
				errs = append(errs, fmt.Errorf("project %q: cwd: %w", key, err))
			} else {
				p.Cwd = expanded
			}
		}
		if p.StartCmd == "" {
			errs = append(errs, fmt.Errorf("project %q: start_cmd is required", key))
		}
	}

	if len(errs) > 0 {
		return nil, &ErrConfigInvalid{Errors: errs}
	}
	return cfg, nil
}

// applySettingsDefaults replaces zero durations and an empty port range with
// their defaults. proxy_port is not touched here: an absent key keeps the
// default set before unmarshalling, and an explicit 0 binds an OS-assigned
// port.
func applySettingsDefaults(s *Settings) {
	d := DefaultSettings()
	if s.IdleTimeout == 0 {
		s.IdleTimeout = d.IdleTimeout
	}
	if s.StartupTimeout == 0 {
		s.StartupTimeout = d.StartupTimeout
	}
	if s.PortRange == [2]int{} {
		s.PortRange = d.PortRange
	}
	if s.ScanInterval == 0 {
		s.ScanInterval = d.ScanInterval
	}
	if s.MinTimeout == 0 {
		s.MinTimeout = d.MinTimeout
	}
	if s.MaxTimeout == 0 {
		s.MaxTimeout = d.MaxTimeout
	}
}

func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
