// Package main provides the entry point for canvasvault-server.
//
// The server opens the durable store (falling back to memory when it
// cannot), and serves records, theme, images and the backup pipeline to
// the editing layer over HTTP/JSON, with Prometheus metrics on the side.
//
// Usage:
//
//	canvasvault-server [flags]
//	canvasvault-server --config /etc/canvasvault/config.yaml
//
// Changes to the configuration file's log level are applied without a
// restart. Every other setting needs one.
package main
