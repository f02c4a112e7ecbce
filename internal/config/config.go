package config

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// Server is the process-wide server configuration. It is loaded once at
// startup and stays immutable for the process lifetime.
type Server struct {
	ListenAddr         string `yaml:"listen_addr"`
	InternalAuthToken  string `yaml:"internal_auth_token"`
	DispatchTriggerURL string `yaml:"dispatch_trigger_url"`
	DBPath             string `yaml:"db_path"`
}

func (c Server) validate() error {
	if c.InternalAuthToken == "" {
		return fmt.Errorf("internal_auth_token is required")
	}
	if c.DispatchTriggerURL == "" {
		return fmt.Errorf("dispatch_trigger_url is required")
	}
	return nil
}

// YAMLLoader loads server configuration from YAML files.
type YAMLLoader struct {
	fs fs.FS
}

// NewYAMLLoader creates a new YAML config loader.
func NewYAMLLoader(filesystem fs.FS) *YAMLLoader {
	return &YAMLLoader{fs: filesystem}
}

// Load reads a server configuration from a YAML file and returns it validated.
func (l *YAMLLoader) Load(ctx context.Context, path string) (*Server, error) {
	data, err := fs.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var cfg Server
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
