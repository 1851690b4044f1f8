// Package config handles protocol configuration file parsing and validation.
//
// The configuration is a YAML file with a single top-level section:
//
//	protocol:
//	  version: 1
//	  max_frame_size: 65536
//	  max_pending_reassemblies: 1024
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vibing/gridwire/proto"
)

// Config is the top-level configuration.
type Config struct {
	Protocol ProtocolConfig `yaml:"protocol"`
}

// ProtocolConfig holds wire protocol settings.
type ProtocolConfig struct {
	// Version is the protocol version written into every frame header.
	// Default: 1.
	Version int `yaml:"version"`

	// MaxFrameSize is the largest physical frame, header included,
	// accepted on read and emitted on write. Logical messages above it
	// are fragmented. Default: 65536.
	MaxFrameSize int `yaml:"max_frame_size"`

	// MaxPendingReassemblies caps the number of correlation ids a
	// connection may hold incomplete reassembly state for. Zero means
	// unlimited. Default: 1024.
	MaxPendingReassemblies int `yaml:"max_pending_reassemblies"`
}

// Load reads and parses a configuration file, applying defaults and
// validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses raw YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Protocol.Version == 0 {
		c.Protocol.Version = 1
	}
	if c.Protocol.MaxFrameSize == 0 {
		c.Protocol.MaxFrameSize = 64 * 1024
	}
	if c.Protocol.MaxPendingReassemblies == 0 {
		c.Protocol.MaxPendingReassemblies = 1024
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Protocol.Version < 0 || c.Protocol.Version > 255 {
		return fmt.Errorf("config: version %d outside 0-255", c.Protocol.Version)
	}
	if c.Protocol.MaxFrameSize <= proto.HeaderSize {
		return fmt.Errorf("config: max_frame_size %d must exceed header size %d",
			c.Protocol.MaxFrameSize, proto.HeaderSize)
	}
	if c.Protocol.MaxFrameSize > 1<<31-1 {
		return fmt.Errorf("config: max_frame_size %d exceeds 31-bit frame length", c.Protocol.MaxFrameSize)
	}
	if c.Protocol.MaxPendingReassemblies < 0 {
		return fmt.Errorf("config: max_pending_reassemblies must not be negative")
	}
	return nil
}
