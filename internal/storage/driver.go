package storage

import (
	"fmt"
	"log/slog"
	"strings"
)

// NewDriver returns the driver named by cfg.Engine.
func NewDriver(cfg KVConfig, logger *slog.Logger) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "", EngineBadger:
		return NewBadgerDriver(cfg, logger), nil
	case EngineBolt:
		return NewBoltDriver(cfg, logger), nil
	default:
		return nil, fmt.Errorf("storage: unknown engine %q", cfg.Engine)
	}
}
