// Package command defines the canvasvault-cli commands.
//
// The CLI works offline against a data directory: it opens the durable
// store with the same configuration the server uses, and refuses backup
// operations when only the in-memory fallback came up.
//
//   - root.go: application, global flags, configuration and store opening
//   - backup.go: snapshot export, import, listing and pruning
//   - store.go: status, key listing, record inspection and reset requests
//   - config.go: effective configuration display and validation
package command
