package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Gateway GatewayConfig
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Ingest  IngestConfig
}

type GatewayConfig struct {
	BaseURL string
	Timeout string
}

// TimeoutDuration parses Timeout. An empty value means no client timeout.
func (g GatewayConfig) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(g.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(g.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid gateway.timeout %q: %w", g.Timeout, err)
	}
	return d, nil
}

type ServerConfig struct {
	Port  int
	Token string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type IngestConfig struct {
	Concurrency int
	CompanyID   string
}

func defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			BaseURL: "http://localhost:8000",
			Timeout: "60s",
		},
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Ingest: IngestConfig{
			Concurrency: 4,
		},
	}
}

// Load reads configuration from config.json (see Path), then applies
// TONEGATE_* environment overrides. server.token never comes from
// config.json: it is read from TONEGATE_SERVER_TOKEN or the token file.
func Load() (Config, error) {
	return loadFrom(readSettings(Path()), defaultTokenFile())
}

func loadFrom(f *settingsFile, tokens tokenSource) (Config, error) {
	cfg := defaults()
	if err := f.applyTo(&cfg); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Server.Token == "" {
		if tok, err := tokens.ServerToken(); err == nil {
			cfg.Server.Token = tok
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	u, err := url.Parse(c.Gateway.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid gateway.base_url %q: set it via `tonegate config set gateway.base_url` or TONEGATE_GATEWAY_BASE_URL", c.Gateway.BaseURL)
	}
	if _, err := c.Gateway.TimeoutDuration(); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Ingest.Concurrency <= 0 {
		return fmt.Errorf("invalid ingest.concurrency %d: must be positive", c.Ingest.Concurrency)
	}
	return nil
}
