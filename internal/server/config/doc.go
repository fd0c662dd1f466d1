// Package config defines the canvasvault-server configuration.
//
// Values come from defaults, an optional YAML file and CANVASVAULT_
// environment variables, loaded through confloader. Verify rejects
// inconsistent settings before any component starts; Sanitize masks
// secrets for logging.
package config
