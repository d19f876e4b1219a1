// Package config loads per-channel shmcomm configuration from TOML files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ChannelConfig holds the recognized options: ring depth, slot size,
// codec selection, and the consumer's connect timeout.
type ChannelConfig struct {
	Pattern        string `toml:"pattern"` // "broadcast" | "reqrep" | "workqueue"
	NumSlots       uint64 `toml:"num_slots"`
	SlotSize       uint64 `toml:"slot_size"`
	Codec          string `toml:"codec"` // "gob" | "msgpack"
	TimeoutConnect string `toml:"timeout_connect"`
	Block          bool   `toml:"block"`           // work-queue producer only
	SendTimeout    string `toml:"timeout"`          // work-queue producer only
}

// Config is the top-level document: one named channel per table entry.
type Config struct {
	Channels map[string]ChannelConfig `toml:"channels"`
}

// Load reads and parses a TOML channel manifest.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ConnectTimeout parses TimeoutConnect, defaulting to 5s.
func (c ChannelConfig) ConnectTimeout() (time.Duration, error) {
	if c.TimeoutConnect == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(c.TimeoutConnect)
	if err != nil {
		return 0, fmt.Errorf("config: invalid timeout_connect %q: %w", c.TimeoutConnect, err)
	}
	return d, nil
}

// SendTimeoutDuration parses SendTimeout, defaulting to 5s.
func (c ChannelConfig) SendTimeoutDuration() (time.Duration, error) {
	if c.SendTimeout == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(c.SendTimeout)
	if err != nil {
		return 0, fmt.Errorf("config: invalid timeout %q: %w", c.SendTimeout, err)
	}
	return d, nil
}
