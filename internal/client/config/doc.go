// Package config loads runtime configuration for the cardkeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags bound by (*Config).BindFlags, which override earlier values.
//
// Supported flags
//
//	-a, --server string     base URL of the cardkeeper API
//	-f, --cache string      path of the local SQLite cache
//	-t, --timeout duration  per-request timeout
//	-c, --config string     JSON configuration file
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "cache_file": "cardkeeper.db",
//	  "request_timeout": "10s"
//	}
package config
