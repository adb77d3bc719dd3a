package config

// Default configuration values.
const (
	DefaultOutputDir     = "output/raw"
	DefaultStagingDir    = "output/staging"
	DefaultOutput        = "auto"
	DefaultWarehouseType = "bigquery"
	DefaultHistoryPath   = ".leapetl/history.db"
)

// defaults seeds the koanf instance before the file is read.
func defaults() map[string]any {
	return map[string]any{
		"output_dir":  DefaultOutputDir,
		"staging_dir": DefaultStagingDir,
		"output":      DefaultOutput,
		"verbose":     false,
		"history":     DefaultHistoryPath,
	}
}

// ApplyWarehouseDefaults fills type-dependent warehouse defaults.
func ApplyWarehouseDefaults(w *WarehouseConfig) {
	if w == nil {
		return
	}
	if w.Type == "" {
		w.Type = DefaultWarehouseType
	}
	if w.Type == "postgres" && w.Port == 0 && w.DSN == "" {
		w.Port = 5432
	}
}
