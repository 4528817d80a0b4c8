// Package config provides configuration management for loupe.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// An empty path loads the defaults, so loupe runs without a file.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention LOUPE_SECTION_FIELD:
//
//   - LOUPE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - LOUPE_UPSTREAM_URL overrides upstream.url
//   - LOUPE_RECORDER_SINK overrides recorder.sink
//   - LOUPE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// PORT sets the listen address to ":PORT" unless LOUPE_SERVER_LISTEN_ADDRESS
// is also set.
//
// # Configuration Precedence
//
//  1. Default values (NewDefault, ApplyDefaults)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// With reload.enabled, a Watcher observes the file and the run command
// re-applies the recorder section and the log level on change. Listener,
// upstream and metrics settings require a restart.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:3000"
//	  trust_proxy: true
//
//	upstream:
//	  url: "http://127.0.0.1:8080"
//
//	recorder:
//	  sink: "console"
//	  color: true
//	  max_body_bytes: 65536
//	  skip_paths: ["/health", "/ready", "/metrics"]
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
