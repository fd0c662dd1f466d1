package storage

import (
	"fmt"

	"github.com/yndnr/canvasvault/internal/core/domain"
)

func sealValue(s ValueSealer, key []byte, rec domain.Record) ([]byte, error) {
	if s == nil {
		return rec.Clone(), nil
	}
	sealed, err := s.Seal(rec, key)
	if err != nil {
		return nil, fmt.Errorf("seal %s: %w", key, err)
	}
	return sealed, nil
}

func openValue(s ValueSealer, key, value []byte) (domain.Record, error) {
	if s == nil {
		return domain.Record(value), nil
	}
	plain, err := s.Open(value, key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return domain.Record(plain), nil
}
