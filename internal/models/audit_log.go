package models

import "time"

type AuditAction string

const (
	AuditLoginSuccess  AuditAction = "login_success"
	AuditLoginFailure  AuditAction = "login_failure"
	AuditLogout        AuditAction = "logout"
	AuditLogoutAll     AuditAction = "logout_all"
	AuditTokenRefresh  AuditAction = "token_refresh"
	AuditTokenReuse    AuditAction = "token_reuse_detected"
	AuditUserRegister  AuditAction = "user_register"
	AuditEmailVerified AuditAction = "email_verified"
	AuditVerifyRequest AuditAction = "email_verify_requested"
)

type AuditEvent struct {
	ID         int64          `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	UserID     *int64         `json:"user_id,omitempty"`
	Action     AuditAction    `json:"action"`
	TargetType string         `json:"target_type,omitempty"`
	TargetID   *int64         `json:"target_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// ClientMetadata is captured from the incoming request for auditing.
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}
