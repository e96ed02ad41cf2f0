package runtime

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFile is looked up in the working directory at startup.
const ConfigFile = "cherry.yaml"

// DatabaseConfig provides default credentials and pool sizing for connect()
// calls against real databases.
type DatabaseConfig struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// Config is the optional runtime configuration file.
type Config struct {
	// DeployURL overrides where deploy() serves a model when the script
	// does not pass a URL.
	DeployURL string `yaml:"deploy_url"`

	// IterationGuard overrides the loop iteration limit.
	IterationGuard int64 `yaml:"iteration_guard"`

	Database DatabaseConfig `yaml:"database"`
}

// LoadConfig reads dir/cherry.yaml. A missing file is not an error and
// yields the zero config.
func LoadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ConfigFile, err)
	}
	return &cfg, nil
}
