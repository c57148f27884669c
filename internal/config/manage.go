package config

import "fmt"

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists every key with its effective value. Secrets are shown only
// as set or unset.
func ShowAll(cfg Config) []KeyInfo {
	out := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		out = append(out, KeyInfo{Key: s.key, EnvVar: s.env, Value: s.display(cfg)})
	}
	return out
}

func (s keySpec) display(cfg Config) string {
	v := fmt.Sprint(s.extract(cfg))
	switch {
	case !s.secret:
		return v
	case v == "":
		return "(unset)"
	default:
		return "(set)"
	}
}

// SetKey validates value and stores it: server.token goes to the token
// file, everything else to config.json.
func SetKey(key, value string) error {
	return setKey(readSettings(Path()), defaultTokenFile(), key, value)
}

func setKey(f *settingsFile, tokens tokenFile, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return tokens.store(value)
	}
	return f.set(s, value)
}

// ValidKeys returns every settable config key name.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		keys = append(keys, s.key)
	}
	return keys
}
