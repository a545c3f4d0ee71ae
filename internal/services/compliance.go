package services

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ComplianceService applies data retention rules.
type ComplianceService struct {
	audit     AuditRepository
	retention time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// NewComplianceService keeps audit entries for retentionDays days.
func NewComplianceService(audit AuditRepository, retentionDays int, logger *log.Logger) *ComplianceService {
	return &ComplianceService{
		audit:     audit,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
		now:       time.Now,
	}
}

// EnforceRetention deletes audit entries older than the retention window
// and returns how many were removed.
func (s *ComplianceService) EnforceRetention(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, invalid("audit retention is disabled")
	}
	cutoff := s.now().UTC().Add(-s.retention)
	deleted, err := s.audit.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("enforce retention: %w", err)
	}
	if s.logger != nil {
		s.logger.Printf("[Compliance] removed %d audit entries before %s", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}
