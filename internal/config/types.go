package config

// Defaults applied when the configuration file leaves a value unset.
const (
	DefaultLogLevel  = "info"
	DefaultBatchSize = 10000
	DefaultTable     = "vehicle_listings"
)

// Config is the top-level structure of the loader's YAML configuration file.
type Config struct {
	// Logging specifies the verbosity level.
	Logging LoggingConfig `yaml:"logging"`
	// Source names the zip archive and the CSV entry inside it.
	Source SourceConfig `yaml:"source"`
	// Import tunes batching, the optional row limit and the optional filter.
	Import ImportConfig `yaml:"import"`
	// Database describes the insert destination.
	Database DatabaseConfig `yaml:"database"`
	// Rejects optionally captures failed rows to a file.
	Rejects *RejectConfig `yaml:"rejects,omitempty"`
}

// LoggingConfig holds settings related to logging verbosity.
type LoggingConfig struct {
	// Level is one of "none", "error", "warn", "info", "debug". Defaults to "info".
	Level string `yaml:"level"`
}

// SourceConfig locates the input data.
type SourceConfig struct {
	// Archive is the path to the zip archive. Environment variables are
	// expanded. Required (here or via the -archive flag).
	Archive string `yaml:"archive"`
	// Entry is the name of the CSV entry inside the archive. Required (here
	// or via the -entry flag).
	Entry string `yaml:"entry"`
}

// ImportConfig tunes the migration pipeline.
type ImportConfig struct {
	// BatchSize is the number of validated rows accumulated before a flush.
	// Defaults to 10000.
	BatchSize int `yaml:"batch_size"`
	// MaxRows bounds the number of validated rows parsed. 0 means unbounded.
	MaxRows int64 `yaml:"max_rows,omitempty"`
	// Filter is an optional govaluate expression evaluated against each
	// normalized row before validation. Rows evaluating false are skipped.
	// Example: "state == 'ca' && price != nil"
	Filter string `yaml:"filter,omitempty"`
}

// DatabaseConfig describes the PostgreSQL destination.
type DatabaseConfig struct {
	// Conn is the connection string. Environment variables are expanded.
	// The -db flag and the DB_CREDENTIALS environment variable take
	// precedence, in that order.
	Conn string `yaml:"conn,omitempty"`
	// Table is the insert target table. Defaults to "vehicle_listings".
	Table string `yaml:"table"`
}

// RejectConfig captures rows that failed filtering or validation.
type RejectConfig struct {
	// File is the reject file path. A ".xlsx" extension selects the
	// spreadsheet writer; anything else writes CSV. Environment variables
	// are expanded.
	File string `yaml:"file"`
}
