package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               int      `mapstructure:"port"`
	LogLevel           string   `mapstructure:"log_level"`
	LogJSON            bool     `mapstructure:"log_json"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	RequestTimeoutSec  int      `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = use server default
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"` // Graceful shutdown wait
	MaxBodyBytes       int64    `mapstructure:"max_body_bytes"`       // Max JSON request body; 0 = default 1MB
	RateLimitPerSec    float64  `mapstructure:"rate_limit_per_sec"`   // Per-client API rate (req/s); 0 = no limit
	RateLimitBurst     int      `mapstructure:"rate_limit_burst"`

	// Topology feed (websocket). An empty URL disables the consumer; snapshots can still be pushed over REST.
	FeedURL             string `mapstructure:"feed_url"`
	FeedReconnectSec    int    `mapstructure:"feed_reconnect_sec"`
	FeedMaxMessageBytes int64  `mapstructure:"feed_max_message_bytes"`
	TopologyCacheTTLSec int    `mapstructure:"topology_cache_ttl_sec"` // Positioned graph cache TTL; 0 = cache disabled
	TopologyCacheSize   int    `mapstructure:"topology_cache_size"`
	TopologyMaxNodes    int    `mapstructure:"topology_max_nodes"` // Max nodes per graph; 0 = no limit
	TopologyDecorate    bool   `mapstructure:"topology_decorate"`  // Draw Endpoints/Volume/EnvVar placeholder nodes

	LayoutNodeWidth  float64 `mapstructure:"layout_node_width"`
	LayoutNodeHeight float64 `mapstructure:"layout_node_height"`
	LayoutNodeSep    float64 `mapstructure:"layout_node_sep"`
	LayoutRankSep    float64 `mapstructure:"layout_rank_sep"`
	LayoutOffset     float64 `mapstructure:"layout_offset"`

	// Binding-policy backend
	BackendURL             string  `mapstructure:"backend_url"`
	BackendTimeoutSec      int     `mapstructure:"backend_timeout_sec"`
	BackendRateLimitPerSec float64 `mapstructure:"backend_rate_limit_per_sec"` // 0 = no limit
	BackendRateLimitBurst  int     `mapstructure:"backend_rate_limit_burst"`
	BindingLegacyLabelIDs  bool    `mapstructure:"binding_legacy_label_ids"` // Accept pre-canonical label id encodings

	KubeconfigPath          string `mapstructure:"kubeconfig_path"`
	KubeconfigContextSuffix string `mapstructure:"kubeconfig_context_suffix"`

	TracingEndpoint     string  `mapstructure:"tracing_endpoint"` // OTLP endpoint; empty = tracing disabled
	TracingSamplingRate float64 `mapstructure:"tracing_sampling_rate"`
}

// Load reads config.yaml from the usual locations and KUBILITICS_* environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/kubilitics/")
	v.AddConfigPath("$HOME/.kubilitics")
	v.AddConfigPath(".")

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("KUBILITICS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// KUBILITICS_ALLOWED_ORIGINS arrives as one comma-separated string.
	cfg.AllowedOrigins = splitOrigins(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("request_timeout_sec", 30)
	v.SetDefault("shutdown_timeout_sec", 15)
	v.SetDefault("max_body_bytes", 1<<20)
	v.SetDefault("rate_limit_per_sec", 0) // 0 = disabled
	v.SetDefault("rate_limit_burst", 0)

	v.SetDefault("feed_url", "")
	v.SetDefault("feed_reconnect_sec", 5)
	v.SetDefault("feed_max_message_bytes", 32<<20)
	v.SetDefault("topology_cache_ttl_sec", 30)
	v.SetDefault("topology_cache_size", 64)
	v.SetDefault("topology_max_nodes", 5000)
	v.SetDefault("topology_decorate", true)

	v.SetDefault("layout_node_width", 146)
	v.SetDefault("layout_node_height", 30)
	v.SetDefault("layout_node_sep", 20)
	v.SetDefault("layout_rank_sep", 60)
	v.SetDefault("layout_offset", 50)

	v.SetDefault("backend_url", "http://localhost:4000")
	v.SetDefault("backend_timeout_sec", 30)
	v.SetDefault("backend_rate_limit_per_sec", 0)
	v.SetDefault("backend_rate_limit_burst", 0)
	v.SetDefault("binding_legacy_label_ids", true)

	v.SetDefault("kubeconfig_path", "")
	v.SetDefault("kubeconfig_context_suffix", "-kubeflex")

	v.SetDefault("tracing_endpoint", "")
	v.SetDefault("tracing_sampling_rate", 1.0)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		return fmt.Errorf("tracing_sampling_rate must be within [0,1], got %v", c.TracingSamplingRate)
	}
	if c.TopologyMaxNodes < 0 || c.TopologyCacheSize < 0 {
		return errors.New("topology_max_nodes and topology_cache_size must not be negative")
	}
	if c.BackendURL == "" {
		return errors.New("backend_url is required")
	}
	return nil
}

// Duration helpers; non-positive values map to zero.

func (c *Config) RequestTimeout() time.Duration   { return seconds(c.RequestTimeoutSec) }
func (c *Config) ShutdownTimeout() time.Duration  { return seconds(c.ShutdownTimeoutSec) }
func (c *Config) FeedReconnect() time.Duration    { return seconds(c.FeedReconnectSec) }
func (c *Config) TopologyCacheTTL() time.Duration { return seconds(c.TopologyCacheTTLSec) }
func (c *Config) BackendTimeout() time.Duration   { return seconds(c.BackendTimeoutSec) }

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, origin := range strings.Split(item, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				out = append(out, origin)
			}
		}
	}
	return out
}
