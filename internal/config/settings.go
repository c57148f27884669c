package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// xdgDir resolves an XDG base directory, falling back to $HOME/<rel>.
func xdgDir(env, rel string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, rel)
	}
	return ""
}

func defaultDataDir() string {
	dir := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	if dir == "" {
		return "tonegate-data"
	}
	return filepath.Join(dir, "tonegate")
}

// Path returns the location of config.json.
func Path() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "tonegate", "config.json")
}

// settingsFile is config.json: one flat JSON object keyed by the names in
// specs, e.g. {"gateway.base_url": "...", "server.port": 4100}.
type settingsFile struct {
	path   string
	values map[string]json.RawMessage
}

// readSettings loads path. A missing file is empty; an unreadable or
// malformed one is logged and treated as empty so defaults still apply.
func readSettings(path string) *settingsFile {
	f := &settingsFile{path: path, values: make(map[string]json.RawMessage)}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		slog.Warn("config file unreadable, using defaults", "path", path, "error", err)
	default:
		if err := json.Unmarshal(data, &f.values); err != nil {
			slog.Warn("config file is not valid JSON, using defaults", "path", path, "error", err)
			f.values = make(map[string]json.RawMessage)
		}
	}
	return f
}

// applyTo copies every non-secret setting present in the file into cfg.
func (f *settingsFile) applyTo(cfg *Config) error {
	for _, s := range specs {
		raw, ok := f.values[s.key]
		if !ok || s.secret {
			continue
		}
		v, err := s.decode(raw)
		if err != nil {
			return fmt.Errorf("reading %s from %s: %w", s.key, f.path, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

// set validates input against s and writes it to disk.
func (f *settingsFile) set(s keySpec, input string) error {
	v, err := s.parse(input)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.values[s.key] = raw

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, out, 0o600)
}
