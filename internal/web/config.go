package web

import (
	"net"
	"strconv"
	"time"

	"github.com/dpe-match/internal/config"
)

// Config represents the web server configuration
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            8080,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ConfigFrom applies the environment listener settings to the defaults
func ConfigFrom(wc config.WebConfig) *Config {
	cfg := DefaultConfig()
	if wc.Host != "" {
		cfg.Host = wc.Host
	}
	if wc.Port > 0 {
		cfg.Port = wc.Port
	}
	return cfg
}
