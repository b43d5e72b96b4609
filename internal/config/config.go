// Package config holds the engine's tunables, loaded from YAML the way
// internal/config/config.go does: nested structs with yaml tags, and a
// *bool-plus-accessor-method pattern for settings that default to true
// (internal/config/config.go's DiscoveryConfig.IsMDNSEnabled is the model).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GroupConfig is the full set of engine tunables for one host process
// (shared across every group the host joins or founds).
type GroupConfig struct {
	Identity  IdentityConfig  `yaml:"identity"`
	Timing    TimingConfig    `yaml:"timing,omitempty"`
	Reliability ReliabilityConfig `yaml:"reliability,omitempty"`
	Onion     OnionConfig     `yaml:"onion,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// IdentityConfig points at the long-term keypair file (§3: Ed25519 signing
// keypair plus X25519 encryption keypair).
type IdentityConfig struct {
	KeyFile string `yaml:"key_file"`
}

// TimingConfig controls the tick loop and peer liveness thresholds (§5).
type TimingConfig struct {
	TickInterval            time.Duration `yaml:"tick_interval,omitempty"`
	PingInterval            time.Duration `yaml:"ping_interval,omitempty"`
	UnconfirmedPeerTimeout  time.Duration `yaml:"unconfirmed_peer_timeout,omitempty"`
	ConfirmedPeerTimeout    time.Duration `yaml:"confirmed_peer_timeout,omitempty"`
}

const (
	defaultTickInterval           = 50 * time.Millisecond
	defaultPingInterval           = 12 * time.Second
	defaultUnconfirmedPeerTimeout = 12 * time.Second
	defaultConfirmedPeerTimeout   = 82 * time.Second
)

func (t TimingConfig) GetTickInterval() time.Duration {
	if t.TickInterval == 0 {
		return defaultTickInterval
	}
	return t.TickInterval
}

func (t TimingConfig) GetPingInterval() time.Duration {
	if t.PingInterval == 0 {
		return defaultPingInterval
	}
	return t.PingInterval
}

func (t TimingConfig) GetUnconfirmedPeerTimeout() time.Duration {
	if t.UnconfirmedPeerTimeout == 0 {
		return defaultUnconfirmedPeerTimeout
	}
	return t.UnconfirmedPeerTimeout
}

func (t TimingConfig) GetConfirmedPeerTimeout() time.Duration {
	if t.ConfirmedPeerTimeout == 0 {
		return defaultConfirmedPeerTimeout
	}
	return t.ConfirmedPeerTimeout
}

// ReliabilityConfig controls the lossless layer's flow control and
// retransmit behavior (§4.3).
type ReliabilityConfig struct {
	SendQueueDepth   int           `yaml:"send_queue_depth,omitempty"`
	RecvWindow       int           `yaml:"recv_window,omitempty"`
	RetransmitFloor  time.Duration `yaml:"retransmit_floor,omitempty"`
	RetransmitCeil   time.Duration `yaml:"retransmit_ceiling,omitempty"`
}

func (r ReliabilityConfig) GetSendQueueDepth() int {
	if r.SendQueueDepth == 0 {
		return 256
	}
	return r.SendQueueDepth
}

func (r ReliabilityConfig) GetRecvWindow() int {
	if r.RecvWindow == 0 {
		return 256
	}
	return r.RecvWindow
}

// OnionConfig controls announce/rendezvous tunables (§4.6).
type OnionConfig struct {
	// Enabled toggles periodic announce publishing for public groups.
	// Defaults to true.
	Enabled           *bool         `yaml:"enabled,omitempty"`
	MaxEntries         int          `yaml:"max_entries,omitempty"`
	MaxSentNodes       int          `yaml:"max_sent_nodes,omitempty"`
	MaxSentAnnounces   int          `yaml:"max_sent_announces,omitempty"`
	EntryTimeout       time.Duration `yaml:"entry_timeout,omitempty"`
	PingIDTimeout      time.Duration `yaml:"ping_id_timeout,omitempty"`
	AnnounceInterval   time.Duration `yaml:"announce_interval,omitempty"`
}

// IsEnabled reports whether onion announce publishing is enabled. Defaults
// to true when unset.
func (o OnionConfig) IsEnabled() bool {
	if o.Enabled == nil {
		return true
	}
	return *o.Enabled
}

func (o OnionConfig) GetMaxEntries() int {
	if o.MaxEntries == 0 {
		return 32
	}
	return o.MaxEntries
}

func (o OnionConfig) GetMaxSentNodes() int {
	if o.MaxSentNodes == 0 {
		return 4
	}
	return o.MaxSentNodes
}

func (o OnionConfig) GetMaxSentAnnounces() int {
	if o.MaxSentAnnounces == 0 {
		return 4
	}
	return o.MaxSentAnnounces
}

func (o OnionConfig) GetEntryTimeout() time.Duration {
	if o.EntryTimeout == 0 {
		return 5 * time.Minute
	}
	return o.EntryTimeout
}

func (o OnionConfig) GetPingIDTimeout() time.Duration {
	if o.PingIDTimeout == 0 {
		return 20 * time.Second
	}
	return o.PingIDTimeout
}

func (o OnionConfig) GetAnnounceInterval() time.Duration {
	if o.AnnounceInterval == 0 {
		return 60 * time.Second
	}
	return o.AnnounceInterval
}

// TelemetryConfig mirrors internal/config/config.go's TelemetryConfig:
// observability is opt-in, off by default.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	Audit   AuditConfig   `yaml:"audit,omitempty"`
}

type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
}

type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses a GroupConfig from a YAML file.
func Load(path string) (*GroupConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var cfg GroupConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse YAML: %w", err)
	}
	if cfg.Identity.KeyFile == "" {
		return nil, fmt.Errorf("config: identity.key_file is required")
	}
	return &cfg, nil
}
