package cli

import (
	"os"

	"github.com/rttune/rttune/internal/config"
)

func defaultConfigPath() string {
	if v := os.Getenv("RTTUNE_CONFIG"); v != "" {
		return v
	}
	if _, err := os.Stat("config.yml"); err == nil {
		return "config.yml"
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return "/etc/rttune/config.yaml"
}

func loadLocalConfig(path string) (*config.Config, error) {
	if path == "" {
		path = defaultConfigPath()
		if _, err := os.Stat(path); err != nil {
			// No config anywhere: run on defaults.
			return config.Default(), nil
		}
	}
	return config.Load(path)
}
