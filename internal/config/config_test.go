package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
server:
  addr: ":9999"
  cors_origins: ["https://example.com"]
ws:
  keepalive: 2s
site:
  hello_delay: 0s
`)))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2*time.Second, cfg.WS.KeepAlive)
	assert.Equal(t, time.Duration(0), cfg.Site.HelloDelay)
	// Untouched keys keep their defaults.
	assert.Equal(t, "/graphql", cfg.Server.Path)
	assert.Equal(t, 10*time.Second, cfg.WS.WriteTimeout)
	assert.True(t, cfg.Server.Playground)
	assert.True(t, cfg.Server.Introspection)
}

func TestLoadFromSetValues(t *testing.T) {
	v := viper.New()
	v.Set("pubsub.nats_url", "nats://localhost:4222")
	v.Set("notes.dsn", "postgres://localhost/notes")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "nats://localhost:4222", cfg.PubSub.NATSURL)
	assert.Equal(t, "gqlgate", cfg.PubSub.NATSPrefix)
	assert.Equal(t, "postgres://localhost/notes", cfg.Notes.DSN)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"path", func(c *Config) { c.Server.Path = "graphql" }, "server.path"},
		{"same paths", func(c *Config) { c.Metrics.Path = c.Server.Path }, "must differ"},
		{"keepalive", func(c *Config) { c.WS.KeepAlive = -time.Second }, "ws.keepalive"},
		{"shutdown", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown_timeout"},
		{"nats prefix", func(c *Config) {
			c.PubSub.NATSURL = "nats://x"
			c.PubSub.NATSPrefix = ""
		}, "pubsub.nats_prefix"},
		{"dsn", func(c *Config) { c.Notes.DSN = "" }, "notes.dsn"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
