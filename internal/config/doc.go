// Package config loads Tabby's configuration file and environment overrides.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/tabby/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing or empty, use defaults
//  5. Apply TABBY_API_KEY and TABBY_BASE_URL from the environment
//
// Call LoadEnvFiles first to pick up .env and .env.local from the working
// directory. Variables already present in the environment win over both files.
//
// # Default Values
//
//   - Config file: ~/.config/tabby/config.toml
//   - API endpoint: https://api.thecatapi.com/v1/
//   - Request timeout: 10 seconds
//   - Rate limit: none
//   - Background refresh: off
//   - Log file: ~/.local/state/tabby/tabby.log at level info
//
// # TOML Format
//
//	base_url = "https://api.thecatapi.com/v1/"
//	api_key = "live_..."
//	request_timeout = 10      # seconds
//	requests_per_second = 2   # 0 = unlimited
//	refresh_interval = 60     # seconds, 0 = off
//	log_level = "debug"
//	log_file = "~/.local/state/tabby/tabby.log"
//	metrics_addr = "127.0.0.1:9464"
//	trace_file = "~/.local/state/tabby/trace.json"
//
// Every field is optional. Tilde expansion is performed for log_file and
// trace_file. Negative durations and rates are rejected.
package config
