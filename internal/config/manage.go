package config

import "fmt"

// KeyInfo is one non-secret key with its effective value.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists the effective value of every non-secret key in cfg.
func ShowAll(cfg Config) []KeyInfo {
	out := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		if !s.secret {
			out = append(out, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(s.extract(cfg))})
		}
	}
	return out
}

// SetKey validates value against the key's type and saves it to the config
// file. Secrets cannot be stored this way.
func SetKey(key, value string) error {
	b, err := openFileBackend(FilePath())
	if err != nil {
		return err
	}
	return setKeyWith(b, key, value)
}

func setKeyWith(b Backend, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
	}
	v, err := s.parse(value)
	if err != nil {
		return err
	}
	return b.Set(key, fmt.Sprint(v))
}

// ValidKeys returns the names accepted by SetKey.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
