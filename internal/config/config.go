package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents the main Lynae configuration
type Config struct {
	// Bot identity
	Bot BotConfig `json:"bot" mapstructure:"bot"`

	// Session bridge
	Bridge BridgeConfig `json:"bridge" mapstructure:"bridge"`

	// Plugins
	Plugins PluginsConfig `json:"plugins" mapstructure:"plugins"`

	// Dispatch
	Dispatch DispatchConfig `json:"dispatch" mapstructure:"dispatch"`

	// Download cache
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// Built-in commands
	Commands CommandsConfig `json:"commands" mapstructure:"commands"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Telemetry
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// BotConfig describes the bot account and who owns it.
type BotConfig struct {
	Name     string   `json:"name" mapstructure:"name"`
	Number   string   `json:"number" mapstructure:"number"`
	Owners   []string `json:"owners" mapstructure:"owners"`
	Bio      string   `json:"bio" mapstructure:"bio"`
	Prefixes []string `json:"prefixes" mapstructure:"prefixes"`
}

// BridgeConfig holds the websocket session bridge settings
type BridgeConfig struct {
	URL               string        `json:"url" mapstructure:"url"`
	Token             string        `json:"token" mapstructure:"token"`
	ReconnectInterval time.Duration `json:"reconnect_interval" mapstructure:"reconnect_interval"`
	RestartDelay      time.Duration `json:"restart_delay" mapstructure:"restart_delay"`
	RequestTimeout    time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	PingInterval      time.Duration `json:"ping_interval" mapstructure:"ping_interval"`
}

// PluginsConfig holds plugin directory settings
type PluginsConfig struct {
	Dir        string `json:"dir" mapstructure:"dir"`
	Watch      bool   `json:"watch" mapstructure:"watch"`
	DebounceMS int    `json:"debounce_ms" mapstructure:"debounce_ms"`
	// Overrides are merged over manifest config sections, keyed by plugin
	// source name.
	Overrides map[string]map[string]any `json:"overrides,omitempty" mapstructure:"overrides"`
}

// DispatchConfig holds inbound message handling settings
type DispatchConfig struct {
	MaxMessageAge time.Duration `json:"max_message_age" mapstructure:"max_message_age"`
	DedupCapacity int           `json:"dedup_capacity" mapstructure:"dedup_capacity"`
}

// CacheConfig holds download cache settings
type CacheConfig struct {
	Path          string        `json:"path" mapstructure:"path"`
	TTL           time.Duration `json:"ttl" mapstructure:"ttl"`
	SweepSchedule string        `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// CommandsConfig holds settings for the built-in commands
type CommandsConfig struct {
	TranslateURL       string        `json:"translate_url" mapstructure:"translate_url"`
	TikTokEndpoints    []string      `json:"tiktok_endpoints" mapstructure:"tiktok_endpoints"`
	InstagramEndpoints []string      `json:"instagram_endpoints" mapstructure:"instagram_endpoints"`
	LyricsSearchURL    string        `json:"lyrics_search_url" mapstructure:"lyrics_search_url"`
	GeniusToken        string        `json:"genius_token" mapstructure:"genius_token"`
	HTTPTimeout        time.Duration `json:"http_timeout" mapstructure:"http_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level" mapstructure:"level"`
	File        string `json:"file" mapstructure:"file"`
	MaxSize     int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge      int    `json:"max_age" mapstructure:"max_age"`
	Compress    bool   `json:"compress" mapstructure:"compress"`
	Redaction   bool   `json:"redaction" mapstructure:"redaction"`
	FilterNoise bool   `json:"filter_noise" mapstructure:"filter_noise"`
	Console     bool   `json:"console" mapstructure:"console"`
	Pretty      bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig holds the prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TelemetryConfig holds tracing settings
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Name:     "Lynae",
			Owners:   []string{},
			Prefixes: []string{".", "!", "/", "#"},
		},
		Bridge: BridgeConfig{
			URL:               "ws://127.0.0.1:3001",
			ReconnectInterval: 5 * time.Second,
			RestartDelay:      3 * time.Second,
			RequestTimeout:    30 * time.Second,
			PingInterval:      30 * time.Second,
		},
		Plugins: PluginsConfig{
			Watch:      true,
			DebounceMS: 500,
		},
		Dispatch: DispatchConfig{
			MaxMessageAge: 60 * time.Second,
			DedupCapacity: 1000,
		},
		Cache: CacheConfig{
			TTL:           time.Hour,
			SweepSchedule: "@every 10m",
		},
		Commands: CommandsConfig{
			HTTPTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:       "info",
			MaxSize:     10,
			MaxAge:      7,
			Compress:    true,
			Redaction:   true,
			FilterNoise: true,
			Console:     true,
			Pretty:      true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9464",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "lynae",
		},
	}
}

// Validate validates the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Bot.Name == "" {
		errs = append(errs, fmt.Errorf("bot.name is required"))
	}
	if len(c.Bot.Prefixes) == 0 {
		errs = append(errs, fmt.Errorf("bot.prefixes must contain at least one prefix"))
	}
	for i, p := range c.Bot.Prefixes {
		if p == "" {
			errs = append(errs, fmt.Errorf("bot.prefixes[%d] is empty", i))
		}
	}

	if c.Bridge.URL == "" {
		errs = append(errs, fmt.Errorf("bridge.url is required"))
	}
	if c.Bridge.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("bridge.request_timeout must be > 0"))
	}
	if c.Bridge.ReconnectInterval < 0 || c.Bridge.RestartDelay < 0 || c.Bridge.PingInterval < 0 {
		errs = append(errs, fmt.Errorf("bridge intervals must be >= 0"))
	}

	if c.Plugins.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("plugins.debounce_ms must be >= 0"))
	}
	if c.Dispatch.MaxMessageAge < 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_message_age must be >= 0"))
	}
	if c.Dispatch.DedupCapacity < 0 {
		errs = append(errs, fmt.Errorf("dispatch.dedup_capacity must be >= 0"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be >= 0"))
	}
	if c.Commands.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("commands.http_timeout must be >= 0"))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("metrics.addr is required when metrics are enabled"))
	}

	v := NewValidator()
	errs = append(errs, v.ValidateConfig(c)...)

	return errors.Join(errs...)
}
