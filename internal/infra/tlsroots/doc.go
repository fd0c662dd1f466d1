// Package tlsroots manages the TLS material of the HTTP listener.
//
//   - watcher.go: server certificate loading with hot reload via fsnotify
//   - roots.go: client CA pools for mutual TLS
//   - config.go: the tls.Config handed to the HTTP server
package tlsroots
