// Package config provides centralized configuration management for the
// VegPulse system. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration
// values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. config.yaml (optional)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern VEG_* for namespacing:
//
//	VEG_SERVER_PORT=8080
//	VEG_LOGGING_LEVEL=info
//	VEG_PATHS_DATA_DIR=data
//	VEG_ANALYSIS_WINDOW=6
//	VEG_ANALYSIS_THRESHOLD_K=1.5
//
// # Paths
//
// All file paths resolve relative to the executable directory, never the
// current working directory, so every binary (eventstudy, robustness,
// sensitivity, web) sees the same data/ and output/ layout regardless of
// where it is invoked from.
package config
