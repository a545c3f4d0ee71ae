package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/talenthub/apiserver/types"
)

// AuditRepository appends audit entries. Entries are never updated.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry types.AuditLog) (types.AuditLog, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	const query = `
		INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, ip_address, user_agent, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.IPAddress,
		entry.UserAgent,
		entry.Details,
		entry.Timestamp,
	); err != nil {
		return types.AuditLog{}, fmt.Errorf("insert audit log: %w", err)
	}
	return entry, nil
}

// DeleteOlderThan removes entries recorded before cutoff and returns how
// many were removed.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM audit_logs WHERE timestamp < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit logs: %w", err)
	}
	return result.RowsAffected()
}
