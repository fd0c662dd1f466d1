package config

import (
	"fmt"

	"github.com/yndnr/canvasvault/internal/infra/confloader"
)

// Load builds a ServerConfig from the defaults, the optional YAML file at
// path and CANVASVAULT_* variables, then applies overrides. Override keys
// are dotted koanf keys such as "storage.data_dir". The result is verified.
func Load(path string, overrides map[string]any, opts ...confloader.Option) (*ServerConfig, error) {
	opts = append([]confloader.Option{
		confloader.WithDefaults(DefaultMap()),
		confloader.WithConfigFile(path),
	}, opts...)
	l := confloader.NewLoader(opts...)

	var cfg ServerConfig
	if err := l.Load(&cfg); err != nil {
		return nil, err
	}

	if len(overrides) > 0 {
		for key, value := range overrides {
			if err := l.Set(key, value); err != nil {
				return nil, fmt.Errorf("override %s: %w", key, err)
			}
		}
		cfg = ServerConfig{}
		if err := l.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if err := Verify(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
