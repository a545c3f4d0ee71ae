package services

import (
	"context"
	"log"
	"time"

	"github.com/talenthub/apiserver/types"
)

const auditTimeout = 5 * time.Second

// Audit actions recorded by the API.
const (
	AuditUserRegistered  = "user.registered"
	AuditUserLogin       = "user.login"
	AuditProfileCreated  = "profile.created"
	AuditProfileUpdated  = "profile.updated"
	AuditResumeUploaded  = "profile.resume_uploaded"
	AuditTalentSearched  = "talent.searched"
	AuditRetentionPurged = "compliance.retention_enforced"
)

type AuditRepository interface {
	Create(ctx context.Context, entry types.AuditLog) (types.AuditLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditLogger appends audit entries. Failures are logged and never
// returned, so auditing cannot fail the request it describes.
type AuditLogger struct {
	repo   AuditRepository
	logger *log.Logger
}

func NewAuditLogger(repo AuditRepository, logger *log.Logger) *AuditLogger {
	return &AuditLogger{repo: repo, logger: logger}
}

// Record writes entry. It survives cancellation of ctx so an entry for a
// completed request is still stored.
func (a *AuditLogger) Record(ctx context.Context, entry types.AuditLog) {
	if a == nil || a.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if _, err := a.repo.Create(ctx, entry); err != nil && a.logger != nil {
		a.logger.Printf("[Audit] failed to record %s: %v", entry.Action, err)
	}
}
