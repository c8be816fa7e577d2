package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	EnvServerHost            = "LDAA_SERVER_HOST"
	EnvServerPort            = "LDAA_SERVER_PORT"
	EnvServerReadTimeout     = "LDAA_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout    = "LDAA_SERVER_WRITE_TIMEOUT"
	EnvServerShutdownTimeout = "LDAA_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds the HTTP listener settings. The write timeout is long
// because run submission waits on document uploads.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration     { return duration(c.ReadTimeout) }
func (c *ServerConfig) WriteTimeoutDuration() time.Duration    { return duration(c.WriteTimeout) }
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration { return duration(c.ShutdownTimeout) }

// Finalize fills defaults (0.0.0.0:8080, 1m read, 15m write, 30s shutdown),
// applies LDAA_SERVER_* overrides, and validates.
func (c *ServerConfig) Finalize() error {
	defaults := ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     "1m",
		WriteTimeout:    "15m",
		ShutdownTimeout: "30s",
	}
	defaults.Merge(c)
	*c = defaults

	envString(EnvServerHost, &c.Host)
	envInt(EnvServerPort, &c.Port)
	envString(EnvServerReadTimeout, &c.ReadTimeout)
	envString(EnvServerWriteTimeout, &c.WriteTimeout)
	envString(EnvServerShutdownTimeout, &c.ShutdownTimeout)

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return checkDurations(
		[2]string{"read_timeout", c.ReadTimeout},
		[2]string{"write_timeout", c.WriteTimeout},
		[2]string{"shutdown_timeout", c.ShutdownTimeout},
	)
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.ReadTimeout != "" {
		c.ReadTimeout = overlay.ReadTimeout
	}
	if overlay.WriteTimeout != "" {
		c.WriteTimeout = overlay.WriteTimeout
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
}
