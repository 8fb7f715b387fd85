package models

import "time"

// AuditLogEntry - запись аудит-журнала
//
// Append-only. Пишется Trade Approval Policy и Anomaly Monitor,
// никогда не читается торговым путем.
type AuditLogEntry struct {
	ID        int                    `json:"id" db:"id"`
	ClientID  string                 `json:"client_id" db:"client_id"`
	Actor     string                 `json:"actor" db:"actor"` // system, operator:<name>, strategy:<id>
	Action    string                 `json:"action" db:"action"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// Действия в аудит-журнале
const (
	AuditActionApprovalRequested = "approval_requested"
	AuditActionApprovalApproved  = "approval_approved"
	AuditActionApprovalRejected  = "approval_rejected"
	AuditActionAnomalyFlagged    = "anomaly_flagged"
)
