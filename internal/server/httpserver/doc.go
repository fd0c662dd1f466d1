// Package httpserver serves the canvasvault HTTP API.
//
// It builds on net/http. NewRouter wraps the API handler in the middleware
// chain (recover, request ID, rate limit, audit, body limit) and mounts
// the Prometheus endpoint.
package httpserver
