// Package appconfig loads anvil's process-wide configuration: the
// data-root path, the import worker pool size, and the log level,
// layering a YAML file under command-line flag overrides the way the
// teacher's command layer does for its own config file. Environment
// variables are not consulted.
package appconfig

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is anvil's process-wide configuration.
type Config struct {
	DataRoot    string `yaml:"data_root"`
	ImportPool  int    `yaml:"import_pool_size"`
	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration anvil starts from before a file or
// flags are applied.
func Default() Config {
	return Config{
		DataRoot:    "./anvil-data",
		ImportPool:  4,
		LogLevel:    "info",
		LogJSON:     false,
		MetricsAddr: ":9090",
	}
}

// Load reads path (if non-empty and present) over Default, then lets
// flags registered on fs override the result. Flags take precedence
// because they're typically set explicitly on the command line for a
// single run, while the file is the durable setting.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("appconfig: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("appconfig: parsing %s: %w", path, err)
		}
	}

	if fs != nil {
		applyFlagOverrides(&cfg, fs)
	}

	return cfg, nil
}

// RegisterFlags adds anvil's configuration flags to fs, defaulted to
// whatever Default() carries so --help shows real values.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("data-root", def.DataRoot, "root directory for the Data Set, import-data, and artifact files")
	fs.Int("import-pool-size", def.ImportPool, "maximum number of imports run concurrently")
	fs.String("log-level", def.LogLevel, "log level (debug, info, warn, error)")
	fs.Bool("log-json", def.LogJSON, "emit logs as JSON")
	fs.String("metrics-addr", def.MetricsAddr, "address the metrics/health HTTP server listens on")
}

func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) {
	if fs.Changed("data-root") {
		cfg.DataRoot, _ = fs.GetString("data-root")
	}
	if fs.Changed("import-pool-size") {
		cfg.ImportPool, _ = fs.GetInt("import-pool-size")
	}
	if fs.Changed("log-level") {
		cfg.LogLevel, _ = fs.GetString("log-level")
	}
	if fs.Changed("log-json") {
		cfg.LogJSON, _ = fs.GetBool("log-json")
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = fs.GetString("metrics-addr")
	}
}
