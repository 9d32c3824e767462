package models

import "time"

// Audited actions.
const (
	AuditActionScholarshipCreate = "SCHOLARSHIP_CREATE"
	AuditActionBrochureUpload    = "BROCHURE_UPLOAD"
	AuditActionLogout            = "LOGOUT"
)

// Audited resources.
const (
	AuditResourceScholarship = "scholarship"
	AuditResourceSession     = "session"
)

// AuditLog is one admin or session mutation recorded after it succeeded.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
