package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
)

// ServerConfig returns a TLS 1.2+ server configuration that serves the
// watcher's current certificate. A non-nil clientCAs requires and
// verifies client certificates against it.
func ServerConfig(w *Watcher, clientCAs *x509.CertPool) *tls.Config {
	cfg := &tls.Config{
		GetCertificate: w.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
	if clientCAs != nil {
		cfg.ClientCAs = clientCAs
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg
}
