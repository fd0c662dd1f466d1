// Package domain defines the core domain models for canvasvault.
//
// Domain models are pure value objects without any IO dependencies
// or framework coupling. This package contains:
//
//   - Collection: the three logical namespaces (nodes, theme, images)
//   - Record: the opaque JSON payload stored under an id
//   - Node, Theme, Image: typed views over records
//   - Errors: domain-specific error definitions
//
// The storage core never interprets node payloads beyond their id.
package domain
