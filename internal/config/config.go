package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Extract ExtractConfig `yaml:"extract" envconfig:"EXTRACT"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
}

// ExtractConfig documents the packed-column unpacking convention for the
// chronicle extract. The convention is configuration, not code: future
// extract-format changes only touch these values, never the reconciler.
//
// Each Details cell holds entries separated by EntryDelimiter; fields
// within an entry are separated by FieldDelimiter, with the first field
// the type tag:
//
//	session|2025-01-01|Compass Meeting
//	goal|2025-01-01|numeracy|active
type ExtractConfig struct {
	EntryDelimiter string `yaml:"entry_delimiter" envconfig:"ENTRY_DELIMITER" default:"~" validate:"required,len=1"`
	FieldDelimiter string `yaml:"field_delimiter" envconfig:"FIELD_DELIMITER" default:"|" validate:"required,len=1,nefield=EntryDelimiter"`
	DateFormat     string `yaml:"date_format" envconfig:"DATE_FORMAT" default:"2006-01-02" validate:"required"`

	// StatusAliases maps raw status labels from the extract onto the
	// canonical goal statuses (active, met, not_applicable). The extract
	// historically reports traffic-light labels.
	StatusAliases map[string]string `yaml:"status_aliases" envconfig:"STATUS_ALIASES" default:"green:met,yellow:active,red:active"`

	// MinSessionCount, when positive, excludes students without any goal
	// facts from the run unless they reached this many sessions. Zero
	// disables the filter and reconciles every student in the extract.
	MinSessionCount int `yaml:"min_session_count" envconfig:"MIN_SESSION_COUNT" default:"0" validate:"min=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/audit.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	// ExtractGlob locates candidate extract files; the newest match is
	// processed.
	ExtractGlob string `yaml:"extract_glob" envconfig:"EXTRACT_GLOB" default:"StudentChronicleOverview*.csv" validate:"required"`
	// MasterFile is the cumulative audit workbook, created on first run.
	MasterFile string `yaml:"master_file" envconfig:"MASTER_FILE" default:"Audited_Master_IEPs.xlsx" validate:"required"`
	// OutputDir receives the per-run parsed snapshot CSV.
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"out"`
}

// Load loads configuration from environment variables and an optional
// YAML config file. Environment variables take precedence over the file.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process("AUDIT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = mergeConfigs(*fileCfg, cfg)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config over env config for fields the file
// sets explicitly (env takes precedence for everything the environment
// provided; envconfig has already applied defaults to the env config).
func mergeConfigs(fileConfig, envConfig Config) Config {
	if v, ok := os.LookupEnv("AUDIT_EXTRACT_ENTRY_DELIMITER"); !ok || v == "" {
		if fileConfig.Extract.EntryDelimiter != "" {
			envConfig.Extract.EntryDelimiter = fileConfig.Extract.EntryDelimiter
		}
	}
	if v, ok := os.LookupEnv("AUDIT_EXTRACT_FIELD_DELIMITER"); !ok || v == "" {
		if fileConfig.Extract.FieldDelimiter != "" {
			envConfig.Extract.FieldDelimiter = fileConfig.Extract.FieldDelimiter
		}
	}
	if v, ok := os.LookupEnv("AUDIT_EXTRACT_DATE_FORMAT"); !ok || v == "" {
		if fileConfig.Extract.DateFormat != "" {
			envConfig.Extract.DateFormat = fileConfig.Extract.DateFormat
		}
	}
	if v, ok := os.LookupEnv("AUDIT_EXTRACT_STATUS_ALIASES"); !ok || v == "" {
		if len(fileConfig.Extract.StatusAliases) > 0 {
			envConfig.Extract.StatusAliases = fileConfig.Extract.StatusAliases
		}
	}
	if v, ok := os.LookupEnv("AUDIT_EXTRACT_MIN_SESSION_COUNT"); !ok || v == "" {
		if fileConfig.Extract.MinSessionCount > 0 {
			envConfig.Extract.MinSessionCount = fileConfig.Extract.MinSessionCount
		}
	}
	if v, ok := os.LookupEnv("AUDIT_LOGGING_LEVEL"); !ok || v == "" {
		if fileConfig.Logging.Level != "" {
			envConfig.Logging.Level = fileConfig.Logging.Level
		}
	}
	if v, ok := os.LookupEnv("AUDIT_LOGGING_FORMAT"); !ok || v == "" {
		if fileConfig.Logging.Format != "" {
			envConfig.Logging.Format = fileConfig.Logging.Format
		}
	}
	if v, ok := os.LookupEnv("AUDIT_LOGGING_OUTPUT"); !ok || v == "" {
		if fileConfig.Logging.Output != "" {
			envConfig.Logging.Output = fileConfig.Logging.Output
		}
	}
	if v, ok := os.LookupEnv("AUDIT_LOGGING_FILE_PATH"); !ok || v == "" {
		if fileConfig.Logging.FilePath != "" {
			envConfig.Logging.FilePath = fileConfig.Logging.FilePath
		}
	}
	if v, ok := os.LookupEnv("AUDIT_PATHS_EXTRACT_GLOB"); !ok || v == "" {
		if fileConfig.Paths.ExtractGlob != "" {
			envConfig.Paths.ExtractGlob = fileConfig.Paths.ExtractGlob
		}
	}
	if v, ok := os.LookupEnv("AUDIT_PATHS_MASTER_FILE"); !ok || v == "" {
		if fileConfig.Paths.MasterFile != "" {
			envConfig.Paths.MasterFile = fileConfig.Paths.MasterFile
		}
	}
	if v, ok := os.LookupEnv("AUDIT_PATHS_OUTPUT_DIR"); !ok || v == "" {
		if fileConfig.Paths.OutputDir != "" {
			envConfig.Paths.OutputDir = fileConfig.Paths.OutputDir
		}
	}

	return envConfig
}

// Validate checks the configuration against its struct tags plus the
// cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	for raw, canonical := range c.Extract.StatusAliases {
		switch canonical {
		case "active", "met", "not_applicable":
		default:
			return fmt.Errorf("status alias %q maps to unknown status %q", raw, canonical)
		}
	}

	return nil
}

// Default returns the built-in configuration, the same values envconfig
// would apply with an empty environment.
func Default() *Config {
	return &Config{
		Extract: ExtractConfig{
			EntryDelimiter: "~",
			FieldDelimiter: "|",
			DateFormat:     "2006-01-02",
			StatusAliases: map[string]string{
				"green":  "met",
				"yellow": "active",
				"red":    "active",
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/audit.log",
		},
		Paths: PathsConfig{
			ExtractGlob: "StudentChronicleOverview*.csv",
			MasterFile:  "Audited_Master_IEPs.xlsx",
			OutputDir:   "out",
		},
	}
}
