package config

import (
	"regexp"
	"strings"
	"time"
)

var projectNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Project is one entry under the "projects" key of the config file.
type Project struct {
	Name        string    `yaml:"name"`
	Cwd         string    `yaml:"cwd"`
	StartCmd    string    `yaml:"start_cmd"`
	IdleTimeout *Duration `yaml:"idle_timeout,omitempty"`
	Disabled    bool      `yaml:"disabled,omitempty"`
	Aliases     []string  `yaml:"aliases,omitempty"`
}

// Settings holds the global daemon tunables.
type Settings struct {
	ProxyPort      int      `yaml:"proxy_port"`
	IdleTimeout    Duration `yaml:"idle_timeout"`
	StartupTimeout Duration `yaml:"startup_timeout"`
	PortRange      [2]int   `yaml:"port_range"`
	ScanInterval   Duration `yaml:"scan_interval"`
	DynamicTimeout bool     `yaml:"dynamic_timeout"`
	MinTimeout     Duration `yaml:"min_timeout"`
	MaxTimeout     Duration `yaml:"max_timeout"`
}

// DefaultSettings returns the defaults named in SPEC_FULL.md §4.F.
func DefaultSettings() Settings {
	return Settings{
		ProxyPort:      80,
		IdleTimeout:    Duration(10 * time.Minute),
		StartupTimeout: Duration(30 * time.Second),
		PortRange:      [2]int{4000, 4999},
		ScanInterval:   Duration(30 * time.Second),
		DynamicTimeout: true,
		MinTimeout:     Duration(2 * time.Minute),
		MaxTimeout:     Duration(30 * time.Minute),
	}
}

// Config is the parsed, validated configuration document.
type Config struct {
	Settings Settings            `yaml:"settings"`
	Projects map[string]*Project `yaml:"projects"`
}

// RoutingTable maps a lowercase subdomain label (name or alias) to its
// project, rebuilt whenever the config is (re)loaded.
type RoutingTable map[string]*Project

// BuildRoutingTable constructs the label->project map described in §3.
func BuildRoutingTable(cfg *Config) RoutingTable {
	rt := make(RoutingTable)
	for name, p := range cfg.Projects {
		rt[name] = p
		for _, alias := range p.Aliases {
			rt[strings.ToLower(alias)] = p
		}
	}
	return rt
}
