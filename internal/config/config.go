// Package config holds the gateway configuration loaded through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Server          ServerConfig  `mapstructure:"server"`
	WS              WSConfig      `mapstructure:"ws"`
	PubSub          PubSubConfig  `mapstructure:"pubsub"`
	Notes           NotesConfig   `mapstructure:"notes"`
	Site            SiteConfig    `mapstructure:"site"`
	OTel            OTelConfig    `mapstructure:"otel"`
	Metrics         MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Path            string        `mapstructure:"path"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Pretty          bool          `mapstructure:"pretty"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MetadataHeaders []string      `mapstructure:"metadata_headers"`
	Playground      bool          `mapstructure:"playground"`
	Introspection   bool          `mapstructure:"introspection"`
}

type WSConfig struct {
	KeepAlive      time.Duration `mapstructure:"keepalive"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	OriginPatterns []string      `mapstructure:"origin_patterns"`
}

type PubSubConfig struct {
	NATSURL    string `mapstructure:"nats_url"`
	NATSPrefix string `mapstructure:"nats_prefix"`
}

type NotesConfig struct {
	DSN string `mapstructure:"dsn"`
}

type SiteConfig struct {
	HelloDelay time.Duration `mapstructure:"hello_delay"`
}

type OTelConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Service  string `mapstructure:"service"`
}

type MetricsConfig struct {
	Path string `mapstructure:"path"`
}

func Default() Config {
	return Config{
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: 5 * time.Second,
		Server: ServerConfig{
			Addr:          ":8000",
			Path:          "/graphql",
			Timeout:       10 * time.Second,
			MaxBodyBytes:  1 << 20,
			Playground:    true,
			Introspection: true,
		},
		WS: WSConfig{
			KeepAlive:    15 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		PubSub: PubSubConfig{
			NATSPrefix: "gqlgate",
		},
		Notes: NotesConfig{
			DSN: "file:gqlgate.db",
		},
		Site: SiteConfig{
			HelloDelay: 3 * time.Second,
		},
		OTel: OTelConfig{
			Service: "gqlgate",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// Load unmarshals v over Default and validates the result.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs structural validation on the config.
func (c Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, fmt.Sprintf("server.path must start with /, got %q", c.Server.Path))
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("metrics.path must start with /, got %q", c.Metrics.Path))
	}
	if c.Metrics.Path == c.Server.Path {
		errs = append(errs, "metrics.path and server.path must differ")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be > 0")
	}

	checkNonNeg := func(path string, d time.Duration) {
		if d < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", path))
		}
	}
	checkNonNeg("server.timeout", c.Server.Timeout)
	checkNonNeg("ws.keepalive", c.WS.KeepAlive)
	checkNonNeg("ws.write_timeout", c.WS.WriteTimeout)
	checkNonNeg("site.hello_delay", c.Site.HelloDelay)
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, "server.max_body_bytes must be >= 0")
	}
	if c.PubSub.NATSURL != "" && c.PubSub.NATSPrefix == "" {
		errs = append(errs, "pubsub.nats_prefix is required when pubsub.nats_url is set")
	}
	if c.Notes.DSN == "" {
		errs = append(errs, "notes.dsn is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation: %s", strings.Join(errs, "; "))
	}
	return nil
}
