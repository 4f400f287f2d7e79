package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/models"
	"github.com/dunglechi/vnpt-talent-hub-sub001/internal/storage"
)

// AuditService writes security events to the audit trail. A failed write is
// logged but never fails the request that produced the event.
type AuditService struct {
	storage storage.AuditRepository
	log     *zap.SugaredLogger
}

func NewAuditService(store storage.AuditRepository, log *zap.SugaredLogger) *AuditService {
	return &AuditService{storage: store, log: log}
}

func (s *AuditService) Record(ctx context.Context, action models.AuditAction, userID *int64, meta models.ClientMetadata, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	if meta.IPAddress != "" {
		details["ip"] = meta.IPAddress
	}
	if meta.UserAgent != "" {
		details["user_agent"] = meta.UserAgent
	}

	event := models.AuditEvent{
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Action:    action,
		Details:   details,
	}

	if err := s.storage.RecordEvent(ctx, event); err != nil {
		s.log.Errorw("failed to record audit event", "action", action, "error", err)
	}
}
