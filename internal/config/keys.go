package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "gateway.base_url", typ: kString, env: "TONEGATE_GATEWAY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Gateway.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.BaseURL },
	},
	{
		key: "gateway.timeout", typ: kString, env: "TONEGATE_GATEWAY_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Gateway.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.Timeout },
	},
	{
		key: "server.port", typ: kInt, env: "TONEGATE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "TONEGATE_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TONEGATE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "TONEGATE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "ingest.concurrency", typ: kInt, env: "TONEGATE_INGEST_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Ingest.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.Concurrency },
	},
	{
		key: "ingest.company_id", typ: kString, env: "TONEGATE_INGEST_COMPANY_ID",
		apply:   func(cfg *Config, v any) { cfg.Ingest.CompanyID = v.(string) },
		extract: func(cfg Config) any { return cfg.Ingest.CompanyID },
	},
}

// decode reads a value from config.json. Integers may be written as JSON
// numbers or numeric strings.
func (s keySpec) decode(raw json.RawMessage) (any, error) {
	switch s.typ {
	case kInt:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("want an integer, got %s", raw)
		}
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return nil, fmt.Errorf("want an integer, got %s", raw)
		}
		return i, nil
	default:
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, fmt.Errorf("want a string, got %s", raw)
		}
		return str, nil
	}
}

// parse converts command-line or environment input for s.
func (s keySpec) parse(input string) (any, error) {
	if s.typ == kInt {
		i, err := strconv.Atoi(strings.TrimSpace(input))
		if err != nil {
			return nil, fmt.Errorf("invalid integer value for %s: %w", s.key, err)
		}
		return i, nil
	}
	return input, nil
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			slog.Warn("ignoring environment override", "env", s.env, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
