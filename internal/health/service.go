// Package health exposes liveness and dependency probes.
package health

import (
	"context"
	"errors"
	"time"

	"sds-backend/internal/crm"
)

// sentinelEmail is looked up during the CRM probe. A not-found answer still
// proves connectivity and auth; only transport or token errors fail the probe.
const sentinelEmail = "healthcheck@example.com"

// Service runs the health checks.
type Service struct {
	CRM *crm.Client
}

// NewService constructs a Service.
func NewService(crmClient *crm.Client) *Service {
	return &Service{CRM: crmClient}
}

// Status is the basic liveness payload.
func (s *Service) Status() map[string]any {
	return map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

// CRMStatus reports whether the CRM connection is configured and reachable.
func (s *Service) CRMStatus(ctx context.Context) map[string]any {
	out := map[string]any{
		"configured": s.CRM.Configured(),
		"reachable":  false,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if !s.CRM.Configured() {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.CRM.GetContactByEmail(ctx, sentinelEmail)
	if err == nil || errors.Is(err, crm.ErrNotFound) {
		out["reachable"] = true
	} else {
		out["error"] = err.Error()
	}
	return out
}
