// Package config provides centralized configuration management for the
// chronicle audit tool. It handles loading configuration from multiple
// sources, validation, and a type-safe API for accessing configuration
// values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of
// precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern AUDIT_* for namespacing:
//
//	AUDIT_EXTRACT_ENTRY_DELIMITER=~
//	AUDIT_EXTRACT_DATE_FORMAT=2006-01-02
//	AUDIT_PATHS_MASTER_FILE=Audited_Master_IEPs.xlsx
//	AUDIT_LOGGING_LEVEL=debug
//
// # Extract Convention
//
// The ExtractConfig section is the single documented home of the packed
// Details column convention (entry delimiter, field order, date format,
// status aliases). Changing the extract format means changing this
// configuration, not the expansion or reconciliation code.
package config
