package server

import (
	"context"

	"github.com/burgerbus/memberclub/internal/storage"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// StorageHealthService verifies storage connectivity as part of health checks.
type StorageHealthService struct {
	Store storage.Store
}

// Probe implements the HealthService interface.
func (s StorageHealthService) Probe(ctx context.Context) error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Probe(ctx)
}
