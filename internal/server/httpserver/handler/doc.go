// Package handler implements the canvasvault HTTP API.
//
// Record endpoints expose the store primitives to the editing layer.
// Admin endpoints run exports and imports, list stored snapshots and
// request a reset of the durable database. Every JSON response uses the
// Response envelope.
package handler
