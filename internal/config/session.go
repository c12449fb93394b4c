// Package config loads runtime tuning values for a viewer session.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the default location of the optional JSON tuning
// file. Values the file omits, or all values when no file is loaded, fall
// back to the defaults coded in the Get* accessors below.
const DefaultConfigPath = "config/session.defaults.json"

// SessionConfig holds the tunable parameters of a running session. All
// fields are optional pointers so a partial JSON document only overrides
// the values it names; Get* accessors fall back to the IEC/SL-wiki defaults
// coded in each accessor.
type SessionConfig struct {
	// ResendTimeout is how long the reliability layer (C3) waits for an ack
	// before re-emitting a reliable packet with the resent flag set.
	ResendTimeout *string `json:"resend_timeout,omitempty"` // duration string like "1s"

	// ResendMaxAttempts bounds the retry loop for a single reliable send.
	ResendMaxAttempts *int `json:"resend_max_attempts,omitempty"`

	// AckDrainInterval is how often the inbound ack set is flushed into a
	// PacketAck even if the size threshold below hasn't been crossed.
	AckDrainInterval *string `json:"ack_drain_interval,omitempty"`

	// AckDrainThreshold is the inbound ack set size that forces an
	// immediate PacketAck rather than waiting for the timer.
	AckDrainThreshold *int `json:"ack_drain_threshold,omitempty"`

	// CompleteAgentMovementDelay is the pause between UseCircuitCode and
	// CompleteAgentMovement during login.
	CompleteAgentMovementDelay *string `json:"complete_agent_movement_delay,omitempty"`

	// CapabilityTimeout bounds the seed-capability HTTP exchange.
	CapabilityTimeout *string `json:"capability_timeout,omitempty"`

	// AssetTimeout bounds individual mesh/texture/object asset fetches.
	AssetTimeout *string `json:"asset_timeout,omitempty"`

	// PersistBaseDir is the base path under which per-agent working
	// directories (JSON snapshots, container artifacts) are created.
	PersistBaseDir *string `json:"persist_base_dir,omitempty"`

	// UIBridgeChunkSize bounds the datagram payload size before an event
	// is split across multiple chunks.
	UIBridgeChunkSize *int `json:"ui_bridge_chunk_size,omitempty"`

	// UIBridgeAddr is the loopback address the UI bridge sends framed
	// events to.
	UIBridgeAddr *string `json:"ui_bridge_addr,omitempty"`
}

// EmptySessionConfig returns a SessionConfig with all fields unset.
func EmptySessionConfig() *SessionConfig {
	return &SessionConfig{}
}

// LoadSessionConfig reads a SessionConfig from a JSON file. Fields omitted
// from the file keep their default values, so partial configs are safe.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySessionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that any set fields are within sane ranges.
func (c *SessionConfig) Validate() error {
	if c.ResendTimeout != nil {
		if _, err := time.ParseDuration(*c.ResendTimeout); err != nil {
			return fmt.Errorf("invalid resend_timeout %q: %w", *c.ResendTimeout, err)
		}
	}
	if c.ResendMaxAttempts != nil && *c.ResendMaxAttempts < 1 {
		return fmt.Errorf("resend_max_attempts must be >= 1, got %d", *c.ResendMaxAttempts)
	}
	if c.AckDrainInterval != nil {
		if _, err := time.ParseDuration(*c.AckDrainInterval); err != nil {
			return fmt.Errorf("invalid ack_drain_interval %q: %w", *c.AckDrainInterval, err)
		}
	}
	if c.AckDrainThreshold != nil && *c.AckDrainThreshold < 1 {
		return fmt.Errorf("ack_drain_threshold must be >= 1, got %d", *c.AckDrainThreshold)
	}
	if c.CompleteAgentMovementDelay != nil {
		if _, err := time.ParseDuration(*c.CompleteAgentMovementDelay); err != nil {
			return fmt.Errorf("invalid complete_agent_movement_delay %q: %w", *c.CompleteAgentMovementDelay, err)
		}
	}
	if c.CapabilityTimeout != nil {
		if _, err := time.ParseDuration(*c.CapabilityTimeout); err != nil {
			return fmt.Errorf("invalid capability_timeout %q: %w", *c.CapabilityTimeout, err)
		}
	}
	if c.AssetTimeout != nil {
		if _, err := time.ParseDuration(*c.AssetTimeout); err != nil {
			return fmt.Errorf("invalid asset_timeout %q: %w", *c.AssetTimeout, err)
		}
	}
	if c.UIBridgeChunkSize != nil && *c.UIBridgeChunkSize < 64 {
		return fmt.Errorf("ui_bridge_chunk_size must be >= 64, got %d", *c.UIBridgeChunkSize)
	}
	return nil
}

func parseDurationOrDefault(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// GetResendTimeout returns the configured resend timeout or the IEC/SL
// default of 1 second.
func (c *SessionConfig) GetResendTimeout() time.Duration {
	return parseDurationOrDefault(c.ResendTimeout, 1*time.Second)
}

// GetResendMaxAttempts returns the configured retry budget, defaulting to
// 3 attempts.
func (c *SessionConfig) GetResendMaxAttempts() int {
	if c.ResendMaxAttempts == nil {
		return 3
	}
	return *c.ResendMaxAttempts
}

// GetAckDrainInterval returns the configured ack-drain timer period.
func (c *SessionConfig) GetAckDrainInterval() time.Duration {
	return parseDurationOrDefault(c.AckDrainInterval, 200*time.Millisecond)
}

// GetAckDrainThreshold returns the inbound ack set size that forces an
// immediate drain.
func (c *SessionConfig) GetAckDrainThreshold() int {
	if c.AckDrainThreshold == nil {
		return 32
	}
	return *c.AckDrainThreshold
}

// GetCompleteAgentMovementDelay returns the login-sequence pause between
// UseCircuitCode and CompleteAgentMovement.
func (c *SessionConfig) GetCompleteAgentMovementDelay() time.Duration {
	return parseDurationOrDefault(c.CompleteAgentMovementDelay, 1*time.Second)
}

// GetCapabilityTimeout returns the seed-capability exchange deadline.
func (c *SessionConfig) GetCapabilityTimeout() time.Duration {
	return parseDurationOrDefault(c.CapabilityTimeout, 10*time.Second)
}

// GetAssetTimeout returns the per-asset fetch deadline.
func (c *SessionConfig) GetAssetTimeout() time.Duration {
	return parseDurationOrDefault(c.AssetTimeout, 30*time.Second)
}

// GetPersistBaseDir returns the configured base directory for per-agent
// artifacts, defaulting to the current directory's "agents" subfolder.
func (c *SessionConfig) GetPersistBaseDir() string {
	if c.PersistBaseDir == nil || *c.PersistBaseDir == "" {
		return "agents"
	}
	return *c.PersistBaseDir
}

// GetUIBridgeChunkSize returns the configured datagram payload chunk size.
func (c *SessionConfig) GetUIBridgeChunkSize() int {
	if c.UIBridgeChunkSize == nil {
		return 1024
	}
	return *c.UIBridgeChunkSize
}

// GetUIBridgeAddr returns the configured loopback address for the UI
// bridge, defaulting to localhost:7900.
func (c *SessionConfig) GetUIBridgeAddr() string {
	if c.UIBridgeAddr == nil || *c.UIBridgeAddr == "" {
		return "127.0.0.1:7900"
	}
	return *c.UIBridgeAddr
}
