package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"prism-board/devserver"
)

const (
	DefaultAPIURL         = "http://localhost:8080/api"
	DefaultAttemptTimeout = 10 * time.Second
	DefaultCacheTTL       = 24 * time.Hour
	DefaultDevServerAddr  = ":8080"
)

// Config is the prism-board.yml configuration.
type Config struct {
	API         APIConfig         `yaml:"api"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Cache       CacheConfig       `yaml:"cache"`
	DevServer   DevServerConfig   `yaml:"devserver"`
	Debug       bool              `yaml:"debug"`
}

// APIConfig locates the task backend.
type APIConfig struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Project string `yaml:"project"` // default project for CLI commands
}

// NegotiationConfig tunes contract negotiation.
type NegotiationConfig struct {
	AttemptTimeout time.Duration `yaml:"attempt_timeout"` // 0 = bounded only by the command
}

// CacheConfig enables the shared contract cache. An empty RedisURL keeps
// contracts in memory for the life of the process.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// DevServerConfig configures `prism-board devserver`.
type DevServerConfig struct {
	Addr              string `yaml:"addr"`
	devserver.Options `yaml:",inline"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		API:         APIConfig{URL: DefaultAPIURL},
		Negotiation: NegotiationConfig{AttemptTimeout: DefaultAttemptTimeout},
		Cache:       CacheConfig{TTL: DefaultCacheTTL},
		DevServer: DevServerConfig{
			Addr:    DefaultDevServerAddr,
			Options: devserver.DefaultOptions(),
		},
	}
}

// Load reads path on top of the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PRISM_API_URL"); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv("PRISM_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("PRISM_PROJECT"); v != "" {
		c.API.Project = v
	}
	if v := os.Getenv("PRISM_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
	if v := os.Getenv("PRISM_ATTEMPT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid PRISM_ATTEMPT_TIMEOUT %q", v)
		}
		c.Negotiation.AttemptTimeout = d
	}
	if v := os.Getenv("PRISM_CONTRACT_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid PRISM_CONTRACT_CACHE_TTL %q", v)
		}
		c.Cache.TTL = d
	}
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		c.Debug = true
	}
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.url must be an absolute http(s) URL, got %q", c.API.URL)
	}
	if c.Negotiation.AttemptTimeout < 0 {
		return errors.New("negotiation.attempt_timeout cannot be negative")
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl cannot be negative")
	}
	if c.Cache.RedisURL != "" {
		if _, err := RedisOptions(c.Cache.RedisURL); err != nil {
			return fmt.Errorf("cache.redis_url: %w", err)
		}
	}
	if err := c.DevServer.Contract.Validate(); err != nil {
		return fmt.Errorf("devserver.contract: %w", err)
	}
	return nil
}

// RedisOptions parses a redis:// URL or an Azure style connection string of
// the form host:port,password=...,ssl=true.
func RedisOptions(conn string) (*redis.Options, error) {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	addr := strings.TrimSpace(parts[0])
	if addr == "" || strings.Contains(addr, "://") {
		return nil, fmt.Errorf("invalid redis connection string: %w", err)
	}
	opts = &redis.Options{Addr: addr}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}
