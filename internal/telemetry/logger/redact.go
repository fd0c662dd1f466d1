package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// MaxValueLen is the longest string value logged verbatim.
const MaxValueLen = 256

// Key fragments that mark a value as secret.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"encryption_key",
	"api_key",
	"credential",
	"authorization",
}

const redactedValue = "***REDACTED***"

// redact masks secrets and shortens bulky values. Groups are handled
// recursively.
func redact(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if s != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if short, ok := Truncate(s); ok {
			return slog.String(a.Key, short)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redact(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// Truncate shortens data URLs to their media header and any other value
// longer than MaxValueLen to a prefix. The result notes the original size.
// It returns false when s is logged unchanged.
func Truncate(s string) (string, bool) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i > 0 && i < MaxValueLen {
			return fmt.Sprintf("%s,...(%d bytes)", s[:i], len(s)), true
		}
	}
	if len(s) > MaxValueLen {
		return fmt.Sprintf("%s...(%d bytes)", s[:64], len(s)), true
	}
	return s, false
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
