package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/daemon"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/protocol"
)

type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`
	GRPCAddr string `mapstructure:"grpc_addr"` // empty disables the health server

	// Lock daemon
	DaemonAddr       string        `mapstructure:"daemon_addr"`
	Protocol         string        `mapstructure:"protocol"` // "modern" | "legacy"
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	IOTimeout        time.Duration `mapstructure:"io_timeout"`
	MaxResponseBytes int           `mapstructure:"max_response_bytes"`
	ProbeInterval    time.Duration `mapstructure:"probe_interval"` // 0 = no background probe

	TrustProxy     bool   `mapstructure:"trust_proxy"`
	AllowedOrigins string `mapstructure:"allowed_origins"` // CSV

	// Page text
	Title   string `mapstructure:"title"`
	Room    string `mapstructure:"room"`
	Welcome string `mapstructure:"welcome"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "console" | "json"
	LogFile   string `mapstructure:"log_file"`
}

// EnvPrefix is prepended to every environment key, e.g. DOORGATE_HTTP_ADDR.
const EnvPrefix = "DOORGATE"

var defaults = map[string]any{
	"http_addr":          ":8080",
	"grpc_addr":          "",
	"daemon_addr":        daemon.DefaultAddr,
	"protocol":           protocol.ModernName,
	"dial_timeout":       daemon.DefaultDialTimeout,
	"io_timeout":         daemon.DefaultIOTimeout,
	"max_response_bytes": daemon.DefaultMaxResponseBytes,
	"probe_interval":     time.Duration(0),
	"trust_proxy":        false,
	"allowed_origins":    "",
	"title":              "Doorlock",
	"room":               "",
	"welcome":            "Welcome Cpt. Cook",
	"log_level":          "info",
	"log_format":         "console",
	"log_file":           "",
}

// Load reads an optional .env file, then DOORGATE_* environment variables
// and, if DOORGATE_CONFIG names one, a YAML config file. Environment
// variables win over the file.
func Load() (Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	c.normalize()
	return c, nil
}

// normalize applies fail-soft corrections to out-of-range values.
func (c *Config) normalize() {
	if _, ok := protocol.VariantByName(c.Protocol); !ok {
		// fail-soft: treat unknown as modern
		c.Protocol = protocol.ModernName
	}
	c.Protocol = strings.ToLower(strings.TrimSpace(c.Protocol))

	if c.DialTimeout <= 0 {
		c.DialTimeout = daemon.DefaultDialTimeout
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = daemon.DefaultIOTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = daemon.DefaultMaxResponseBytes
	}
	if c.ProbeInterval < 0 {
		c.ProbeInterval = 0
	}

	format := strings.ToLower(strings.TrimSpace(c.LogFormat))
	if format != "console" && format != "json" {
		format = "console"
	}
	c.LogFormat = format
}

// Variant returns the configured daemon protocol variant.
func (c Config) Variant() protocol.Variant {
	v, _ := protocol.VariantByName(c.Protocol)
	if v == nil {
		return protocol.Modern{}
	}
	return v
}

// DaemonConfig returns the transport settings for daemon.NewClient.
func (c Config) DaemonConfig() daemon.Config {
	return daemon.Config{
		Addr:             c.DaemonAddr,
		DialTimeout:      c.DialTimeout,
		IOTimeout:        c.IOTimeout,
		MaxResponseBytes: c.MaxResponseBytes,
		Variant:          c.Variant(),
	}
}

// Origins splits AllowedOrigins into a list.
func (c Config) Origins() []string {
	return splitCSV(c.AllowedOrigins)
}

// Banner is the page heading, "title - room" when a room is set.
func (c Config) Banner() string {
	if strings.TrimSpace(c.Room) == "" {
		return c.Title
	}
	return c.Title + " - " + c.Room
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
