// SPDX-License-Identifier: MIT

// Package config loads and validates the daemon configuration with the
// precedence ENV > config file > defaults.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	// Server
	ListenAddr     string   `yaml:"listen"`
	DataDir        string   `yaml:"dataDir"`
	LogLevel       string   `yaml:"logLevel"`
	AllowedOrigins []string `yaml:"allowedOrigins"`

	// Session lifecycle
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	ReapInterval time.Duration `yaml:"reapInterval"`

	// Upload side-channel
	UploadMaxBytes int64 `yaml:"uploadMaxBytes"`
	UploadRateRPM  int   `yaml:"uploadRateRPM"`

	// Platform
	LoginBaseURL    string        `yaml:"loginBaseURL"`
	Environment     string        `yaml:"environment"`
	PlatformTimeout time.Duration `yaml:"platformTimeout"`

	// Optional Redis-backed derivation cache. Empty address selects the
	// in-memory cache.
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`
}

// Defaults returns the built-in configuration baseline.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:      ":8080",
		DataDir:         "/var/lib/ocelbridge",
		LogLevel:        "info",
		IdleTimeout:     5 * time.Minute,
		ReapInterval:    30 * time.Second,
		UploadMaxBytes:  64 << 20, // 64 MiB
		UploadRateRPM:   30,
		LoginBaseURL:    "https://id.celonis.cloud",
		Environment:     "develop",
		PlatformTimeout: 30 * time.Second,
		CacheTTL:        15 * time.Minute,
	}
}

// applyEnv overlays environment variables onto cfg.
func (c *AppConfig) applyEnv() {
	c.ListenAddr = ParseString("OCELBRIDGE_LISTEN", c.ListenAddr)
	c.DataDir = ParseString("OCELBRIDGE_DATA", c.DataDir)
	c.LogLevel = ParseString("OCELBRIDGE_LOG_LEVEL", c.LogLevel)
	if origins := ParseString("OCELBRIDGE_ALLOWED_ORIGINS", ""); origins != "" {
		c.AllowedOrigins = splitCSV(origins)
	}
	c.IdleTimeout = ParseDuration("OCELBRIDGE_IDLE_TIMEOUT", c.IdleTimeout)
	c.ReapInterval = ParseDuration("OCELBRIDGE_REAP_INTERVAL", c.ReapInterval)
	c.UploadMaxBytes = ParseInt64("OCELBRIDGE_UPLOAD_MAX_BYTES", c.UploadMaxBytes)
	c.UploadRateRPM = ParseInt("OCELBRIDGE_UPLOAD_RATE_RPM", c.UploadRateRPM)
	c.LoginBaseURL = ParseString("OCELBRIDGE_LOGIN_BASE_URL", c.LoginBaseURL)
	c.Environment = ParseString("OCELBRIDGE_ENVIRONMENT", c.Environment)
	c.PlatformTimeout = ParseDuration("OCELBRIDGE_PLATFORM_TIMEOUT", c.PlatformTimeout)
	c.RedisAddr = ParseString("OCELBRIDGE_REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = ParseString("OCELBRIDGE_REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = ParseInt("OCELBRIDGE_REDIS_DB", c.RedisDB)
	c.CacheTTL = ParseDuration("OCELBRIDGE_CACHE_TTL", c.CacheTTL)
}

// Validate rejects configurations the daemon cannot run with.
func (c *AppConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %s", c.IdleTimeout)
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("reap interval must be positive, got %s", c.ReapInterval)
	}
	if c.ReapInterval > c.IdleTimeout {
		return fmt.Errorf("reap interval %s exceeds idle timeout %s", c.ReapInterval, c.IdleTimeout)
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive, got %d", c.UploadMaxBytes)
	}
	u, err := url.Parse(c.LoginBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("login base URL %q is not an absolute URL", c.LoginBaseURL)
	}
	if c.Environment == "" {
		return fmt.Errorf("environment must not be empty")
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
