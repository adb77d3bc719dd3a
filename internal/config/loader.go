package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "leapetl.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "leapetl.yml"

// EnvPrefix prefixes environment overrides. A double underscore descends into
// a section: LEAPETL_WAREHOUSE__PROJECT sets warehouse.project.
const EnvPrefix = "LEAPETL_"

// flagKeys maps CLI flag names to the config keys they override.
var flagKeys = map[string]string{
	"mode":        "mode",
	"output-dir":  "output_dir",
	"staging-dir": "staging_dir",
	"run-date":    "run_date",
	"verbose":     "verbose",
	"output":      "output",
	"history":     "history",
}

// ErrNoConfigFile is returned when no config file was given or found.
var ErrNoConfigFile = errors.New("no config file found")

// findConfigFile finds the config file to use.
// Priority: explicit path > leapetl.yaml > leapetl.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load reads, layers and validates the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := load(cfgFile, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	path := findConfigFile(cfgFile)
	if path == "" {
		return nil, &ConfigError{
			Field: "config",
			Msg:   fmt.Sprintf("looked for %s and %s; pass --config", ConfigFileName, ConfigFileNameAlt),
			Err:   ErrNoConfigFile,
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "config", Msg: "cannot read " + path, Err: err}
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, &ConfigError{Field: "config", Msg: "invalid YAML in " + path, Err: err}
	}

	// 3. Environment (LEAPETL_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &ConfigError{Msg: "unable to decode config", Err: err}
	}
	cfg.File = path

	datasets, err := decodeDatasets(k, raw)
	if err != nil {
		return nil, err
	}
	cfg.Datasets = datasets

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode != ModeLocal && cfg.Warehouse == nil {
		cfg.Warehouse = &WarehouseConfig{}
	}
	if cfg.Warehouse != nil {
		cfg.Warehouse.Type = strings.ToLower(cfg.Warehouse.Type)
		ApplyWarehouseDefaults(cfg.Warehouse)
		expandWarehouseEnvVars(cfg.Warehouse)
	}

	return &cfg, nil
}

// envKey turns LEAPETL_OUTPUT_DIR into output_dir and LEAPETL_WAREHOUSE__DSN
// into warehouse.dsn.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// decodeDatasets reads the datasets section in declaration order.
func decodeDatasets(k *koanf.Koanf, raw []byte) ([]DatasetConfig, error) {
	order, err := declaredOrder(raw)
	if err != nil {
		return nil, &ConfigError{Field: "datasets", Msg: "cannot read declaration order", Err: err}
	}
	if !k.Exists("datasets") {
		return nil, nil
	}

	var byKey map[string]DatasetConfig
	if err := k.Unmarshal("datasets", &byKey); err != nil {
		return nil, &ConfigError{Field: "datasets", Msg: "must map dataset keys to {path, tables}", Err: err}
	}

	out := make([]DatasetConfig, 0, len(byKey))
	for _, key := range order {
		ds, ok := byKey[key]
		if !ok {
			return nil, &ConfigError{Field: "datasets." + key, Msg: "dataset keys must not contain '.'"}
		}
		ds.Key = key
		out = append(out, ds)
	}
	if len(out) != len(byKey) {
		return nil, &ConfigError{Field: "datasets", Msg: "dataset keys must be unique and must not contain '.'"}
	}
	return out, nil
}

// ErrNotMapping is returned when the datasets section is not a YAML mapping.
var ErrNotMapping = errors.New("datasets is not a mapping")

// envVarPattern matches ${VAR} references.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandWarehouseEnvVars expands environment variables in credential-bearing fields.
func expandWarehouseEnvVars(w *WarehouseConfig) {
	for _, f := range []*string{
		&w.Project, &w.CredentialsFile, &w.DSN, &w.Path,
		&w.Host, &w.Database, &w.User, &w.Password,
	} {
		*f = expandEnvVars(*f)
	}
}

// Dataset returns the dataset with the given key.
func (c *Config) Dataset(key string) (DatasetConfig, bool) {
	i := slices.IndexFunc(c.Datasets, func(ds DatasetConfig) bool { return ds.Key == key })
	if i < 0 {
		return DatasetConfig{}, false
	}
	return c.Datasets[i], true
}
