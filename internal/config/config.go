package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// RouteRule binds a guarded route prefix to a module route in the SSO schema.
type RouteRule struct {
	Prefix string `yaml:"prefix"`
	Module string `yaml:"module"`
}

// Config holds the service configuration, loaded from an optional YAML file
// with environment overrides for deploy-time secrets.
type Config struct {
	Listen string `yaml:"listen"`

	Database struct {
		DSN string `yaml:"dsn"`
		// QueryTimeout bounds individual store queries, distinct from the
		// request timeout, so a degraded store cannot hang guarded routes.
		QueryTimeout string `yaml:"query_timeout"`
	} `yaml:"database"`

	Application struct {
		// ID is the UUID this dashboard is registered under in the shared
		// identity provider.
		ID string `yaml:"id"`
	} `yaml:"application"`

	Session struct {
		Secret string `yaml:"secret"`
		Issuer string `yaml:"issuer"`
		TTL    string `yaml:"ttl"`
	} `yaml:"session"`

	RateLimit struct {
		Burst     int `yaml:"burst"`
		PerSecond int `yaml:"per_second"`
	} `yaml:"rate_limit"`

	Routes []RouteRule `yaml:"routes"`
}

// Default returns the configuration with the dashboard's standard module
// routes pre-registered.
func Default() *Config {
	cfg := &Config{Listen: ":8080"}
	cfg.Database.QueryTimeout = "3s"
	cfg.Session.TTL = "8h"
	cfg.RateLimit.Burst = 20
	cfg.RateLimit.PerSecond = 10
	cfg.Routes = []RouteRule{
		{Prefix: "/dashboard", Module: "/dashboard"},
		{Prefix: "/bi-iptu", Module: "/bi-iptu"},
		{Prefix: "/bi-tff", Module: "/bi-tff"},
		{Prefix: "/bi-refis", Module: "/bi-refis"},
		{Prefix: "/bi-refis-percentuais", Module: "/bi-refis-percentuais"},
		{Prefix: "/noticia", Module: "/noticia"},
		{Prefix: "/chatbot", Module: "/chatbot"},
	}
	return cfg
}

// Load reads path (when non-empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SSO_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("SSO_PG_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("SSO_APP_ID"); v != "" {
		c.Application.ID = v
	}
	if v := os.Getenv("SSO_SESSION_SECRET"); v != "" {
		c.Session.Secret = v
	}
}

// Validate checks the fields that have no usable zero value.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required (set database.dsn or SSO_PG_DSN)")
	}
	if _, err := uuid.Parse(strings.TrimSpace(c.Application.ID)); err != nil {
		return fmt.Errorf("application id must be a UUID: %w", err)
	}
	if strings.TrimSpace(c.Session.Secret) == "" {
		return fmt.Errorf("session secret is required (set session.secret or SSO_SESSION_SECRET)")
	}
	if _, err := c.QueryTimeout(); err != nil {
		return err
	}
	if _, err := c.SessionTTL(); err != nil {
		return err
	}
	for _, r := range c.Routes {
		if !strings.HasPrefix(r.Prefix, "/") || strings.TrimSpace(r.Module) == "" {
			return fmt.Errorf("invalid route rule %q -> %q", r.Prefix, r.Module)
		}
	}
	return nil
}

// QueryTimeout parses the store query timeout.
func (c *Config) QueryTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Database.QueryTimeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid database query_timeout %q", c.Database.QueryTimeout)
	}
	return d, nil
}

// SessionTTL parses the session lifetime.
func (c *Config) SessionTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Session.TTL)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid session ttl %q", c.Session.TTL)
	}
	return d, nil
}

// ApplicationID returns the normalized application UUID.
func (c *Config) ApplicationID() string {
	return strings.ToLower(strings.TrimSpace(c.Application.ID))
}
