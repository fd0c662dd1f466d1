// Package main provides the entry point for canvasvault-cli, the offline
// maintenance tool that exports and imports snapshots, inspects records and
// requests resets against a CanvasVault data directory.
package main
