// Package config handles configuration loading for ads-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ADS_GATEWAY_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. ~/.config/ads-gateway/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${ADS_GATEWAY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	credentials:
//	  prompt_timeout: "60s"
//	  cache_ttl: "30m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Credential resolution:
//
//	credentials:
//	  service_url: "http://localhost:9000"  # external credential service
//	  static_token: "${ADS_ACCESS_TOKEN}"   # optional pinned override
//	  prompt_timeout: "60s"
//	  cache_ttl: "30m"
//
// Advertising API:
//
//	ads:
//	  base_url: "https://graph.facebook.com"
//	  api_version: "v21.0"
//
// Session registry:
//
//	sessions:
//	  store: "sqlite"              # memory (default) or sqlite
//	  path: "./sessions.db"
//	  ttl: "24h"                   # "0" retains sessions indefinitely
//
// Registration surface authentication:
//
//	auth:
//	  jwt_secret: "${ADS_GATEWAY_JWT_SECRET}"
//	  require_auth: true
//
// Logging and metrics:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Validation
//
// Load() validates:
//
//   - server.http_addr presence
//   - credentials.service_url presence, unless a static_token pins the credential
//   - ads.base_url presence
//   - sessions.path presence when the sqlite store is selected
//   - auth.jwt_secret presence when require_auth is set
//   - Duration format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/ads-gateway/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
