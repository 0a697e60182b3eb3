// Package config handles configuration loading for shipdesk-session.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Empty fields get defaults before validation.
//
// # Configuration File
//
// Default location:
//
//  1. Path from SHIPDESK_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/shipdesk/session.yaml (~/.config/shipdesk/session.yaml)
//
// A path ending in .toml is parsed as TOML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	session:
//	  signing_secret: "${SHIPDESK_SIGNING_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
//	database:
//	  path: "/var/lib/shipdesk/session.db"
//
//	session:
//	  legacy_path: "/var/lib/shipdesk/legacy-session.json"  # default: next to the database
//	  issuer: "shipdesk"
//	  audience: "shipdesk-dashboard"
//	  token_signing: "placeholder"         # placeholder, hs256
//	  signing_secret: "${SHIPDESK_SIGNING_SECRET}"
//	  delegated_secret_policy: "verify"    # verify, identifier_only
//
//	account:
//	  base_url: "https://accounts.shipdesk.example"
//	  timeout: "15s"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - database.path is present
//   - signing mode and secret policy values
//   - hs256 secret minimum length (32 bytes)
//   - account.base_url scheme and timeout format
package config
