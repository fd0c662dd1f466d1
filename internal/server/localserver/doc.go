// Package localserver serves the admin API over a Unix domain socket.
//
// Access is controlled by file system permissions on the socket, so the
// endpoint skips TLS, rate limiting and CORS. Besides the regular API it
// exposes process controls:
//
//   - POST /local/v1/reload   re-read the configuration file
//   - POST /local/v1/shutdown begin a graceful shutdown
package localserver
