package types

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is an append-only record of an action taken by a user.
type AuditLog struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	Action       string     `json:"action"`
	ResourceType string     `json:"resource_type"`
	ResourceID   *uuid.UUID `json:"resource_id,omitempty"`
	IPAddress    string     `json:"ip_address,omitempty"`
	UserAgent    string     `json:"user_agent,omitempty"`
	Details      string     `json:"details,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}
