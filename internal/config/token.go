package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// tokenSource supplies server.token when the environment does not.
type tokenSource interface {
	ServerToken() (string, error)
}

// tokenFile keeps the local API bearer token in its own 0600 file under the
// data directory, outside config.json.
type tokenFile struct {
	path string
}

func defaultTokenFile() tokenFile {
	return tokenFile{path: filepath.Join(defaultDataDir(), "server_token")}
}

func (f tokenFile) ServerToken() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f tokenFile) store(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing server token: %w", err)
	}
	return nil
}
