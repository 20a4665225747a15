// Package config loads shopfront settings from TOML and the environment.
//
// # Resolution order
//
//  1. Built-in defaults (Default)
//  2. The TOML file, ~/.config/shopfront/config.toml unless a path is given.
//     A missing file is not an error.
//  3. SHOPFRONT_* environment variables, read with envconfig
//  4. Command line flags, applied by the caller
//
// Empty or whitespace-only values never override a lower layer. Paths get
// tilde expansion and are made absolute. Durations use Go syntax ("750ms",
// "10s").
//
// # TOML format
//
//	[api]
//	base_url = "http://127.0.0.1:8082/api/v1"
//	request_timeout = "10s"
//
//	[storage]
//	backend = "file"            # file, memory or redis
//	dir = "~/.local/share/shopfront"
//	namespace = "shopfront"
//	redis_url = "redis://127.0.0.1:6379/0"
//
//	[connectivity]
//	probe_interval = "2s"
//	failure_threshold = 2
//
//	[sync]
//	max_retries = 3
//	refresh_interval = "30s"    # background cart refresh while online
//
//	[log]
//	level = "info"
//	format = "text"             # text or json
//	file = "~/.local/share/shopfront/shopfront.log"
//
//	[mock]
//	addr = "127.0.0.1:8082"
//	seed_file = ""
//
// Every key maps to an environment variable by joining table and key, e.g.
// SHOPFRONT_API_BASE_URL or SHOPFRONT_STORAGE_BACKEND.
package config
