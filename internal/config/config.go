package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/roach88/rumscope/internal/rum"
	"github.com/roach88/rumscope/internal/scope"
)

// Defaults applied before a file is decoded.
const (
	DefaultSampleRate        = 100.0
	DefaultActionInactivity  = 100 * time.Millisecond
	DefaultActionMaxDuration = scope.DefaultActionMaxDuration
	DefaultVitalsInterval    = time.Second
	DefaultStorePath         = "rum.db"
	DefaultStoreEncoding     = "json"
)

// Duration is a time.Duration written as a string ("250ms") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// StoreConfig selects the SQLite document sink.
type StoreConfig struct {
	Path     string `toml:"path" json:"path"`
	Encoding string `toml:"encoding" json:"encoding"`
}

// Config is the decoded rum.toml.
type Config struct {
	ApplicationID string  `toml:"application_id" json:"application_id"`
	Service       string  `toml:"service" json:"service,omitempty"`
	Version       string  `toml:"version" json:"version,omitempty"`
	Env           string  `toml:"env" json:"env,omitempty"`
	SampleRate    float64 `toml:"sample_rate" json:"sample_rate"`

	FirstPartyHosts  []string `toml:"first_party_hosts" json:"first_party_hosts,omitempty"`
	BackgroundEvents bool     `toml:"background_events" json:"background_events"`
	AnnounceViews    bool     `toml:"announce_views" json:"announce_views"`

	ActionInactivity  Duration `toml:"action_inactivity" json:"action_inactivity"`
	ActionMaxDuration Duration `toml:"action_max_duration" json:"action_max_duration"`
	VitalsInterval    Duration `toml:"vitals_interval" json:"vitals_interval"`

	User    rum.UserInfo    `toml:"user" json:"user"`
	Device  rum.DeviceInfo  `toml:"device" json:"device"`
	OS      rum.OSInfo      `toml:"os" json:"os"`
	Network rum.NetworkInfo `toml:"network" json:"network"`

	Store StoreConfig `toml:"store" json:"store"`

	GlobalAttributes map[string]any `toml:"global_attributes" json:"global_attributes,omitempty"`
}

// Default returns a configuration holding every default value. The
// application id is left empty and must come from the file.
func Default() *Config {
	return &Config{
		SampleRate:        DefaultSampleRate,
		ActionInactivity:  Duration(DefaultActionInactivity),
		ActionMaxDuration: Duration(DefaultActionMaxDuration),
		VitalsInterval:    Duration(DefaultVitalsInterval),
		Store: StoreConfig{
			Path:     DefaultStorePath,
			Encoding: DefaultStoreEncoding,
		},
	}
}

// Load reads and decodes a TOML file on top of Default(). Unknown keys are
// rejected. The result is not validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := checkUndecoded(meta); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text on top of Default().
func Parse(data string) (*Config, error) {
	cfg := Default()
	meta, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := checkUndecoded(meta); err != nil {
		return nil, err
	}
	return cfg, nil
}

// freeformKeys hold arbitrary user tables.
var freeformKeys = []string{"global_attributes", "user.extra"}

func checkUndecoded(meta toml.MetaData) error {
	var unknown []string
	for _, key := range meta.Undecoded() {
		name := key.String()
		if isFreeform(name) {
			continue
		}
		unknown = append(unknown, name)
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("unknown keys: %s", strings.Join(unknown, ", "))
}

func isFreeform(key string) bool {
	for _, prefix := range freeformKeys {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			return true
		}
	}
	return false
}

// Snapshot returns the ambient environment described by the file.
func (c *Config) Snapshot() rum.Snapshot {
	return rum.Snapshot{
		Service: c.Service,
		Version: c.Version,
		Env:     c.Env,
		User:    c.User,
		Network: c.Network,
		Device:  c.Device,
		OS:      c.OS,
	}
}

// ScopeEnv returns the scope dependencies described by the file. The write
// context, notifier and vital monitors are left for the caller to wire.
func (c *Config) ScopeEnv(logger *slog.Logger) scope.Env {
	return scope.Env{
		ApplicationID:     c.ApplicationID,
		SampleRate:        c.SampleRate,
		FirstParty:        scope.NewHostResolver(c.FirstPartyHosts...),
		Attributes:        rum.NewGlobalAttributes(c.GlobalAttributes),
		ActionInactivity:  c.ActionInactivity.Std(),
		ActionMaxDuration: c.ActionMaxDuration.Std(),
		BackgroundEvents:  c.BackgroundEvents,
		AnnounceViews:     c.AnnounceViews,
		Logger:            logger,
	}
}
