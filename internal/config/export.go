package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Export renders the configuration in the requested format, "json" or
// "yaml". Used by the CLI to hand configs to other tooling.
func Export(cfg *Config, format string) ([]byte, error) {
	switch format {
	case "", "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling config: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling config: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (want json or yaml)", format)
	}
}
