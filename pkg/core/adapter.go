package core

// AdapterConfig holds configuration for connecting to a warehouse or engine.
type AdapterConfig struct {
	Type     string
	Path     string
	DSN      string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Options  map[string]string
	// Params carries adapter-specific settings (e.g. BigQuery project/location),
	// decoded by each adapter with mapstructure.
	Params map[string]any
}
