// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Defaults registered with WithDefaults
//  2. YAML configuration file
//  3. Environment variables (CANVASVAULT_ prefix)
//  4. Explicit overrides loaded with LoadMap (command-line flags)
//
// Watcher reports edits to the configuration file so that reloadable
// settings, such as the log level, can be applied without a restart.
package confloader
