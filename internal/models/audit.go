package models

import (
	"encoding/json"
	"time"
)

// Audit action tags. The vocabulary is closed but may grow.
const (
	AuditActionRequestCreated    = "REQUEST_CREATED"
	AuditActionRequestUpdated    = "REQUEST_UPDATED"
	AuditActionUserRoleUpdated   = "USER_ROLE_UPDATED"
	AuditActionLogin             = "LOGIN"
	AuditActionLogout            = "LOGOUT"
	AuditActionSLASweepTriggered = "SLA_SWEEP_TRIGGERED"
)

// FieldChange is the before/after pair recorded for one field.
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// AuditLog is an immutable audit trail record.
type AuditLog struct {
	ID        string          `db:"id" json:"id"`
	UserID    *string         `db:"user_id" json:"user_id,omitempty"`
	RequestID *string         `db:"request_id" json:"request_id,omitempty"`
	Action    string          `db:"action" json:"action"`
	Changes   json.RawMessage `db:"changes" json:"changes"`
	IPAddress string          `db:"ip_address" json:"ip_address"`
	UserAgent string          `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Audit query page bounds. MaxAuditPageSize is also the CSV export cap.
const (
	DefaultAuditPageSize = 100
	MaxAuditPageSize     = 5000
)

// AuditFilter constrains audit queries.
type AuditFilter struct {
	RequestID string
	UserID    string
	Action    string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
