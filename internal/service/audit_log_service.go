package service

import (
	"context"
	"fmt"

	"librarian/internal/auth"
	"librarian/internal/domain"
	"librarian/pkg/logger"
)

const (
	defaultAuditPageSize = 10
	maxAuditPageSize     = 100
)

type AuditLogService struct {
	repo   domain.AuditLogRepository
	logger logger.Logger
}

func NewAuditLogService(repo domain.AuditLogRepository, logger logger.Logger) domain.AuditLogService {
	return &AuditLogService{
		repo:   repo,
		logger: logger,
	}
}

// LogAction records a completed change. It runs after the change has been
// committed, so a failure here is logged and swallowed.
func (s *AuditLogService) LogAction(ctx context.Context, actor domain.Caller, entityType domain.EntityType, entityID int64, action domain.ActionType, details string) {
	auditLog := &domain.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actor.UserID,
		Details:    details,
	}

	if err := s.repo.Create(ctx, auditLog); err != nil {
		s.logger.ErrorContext(ctx, "Audit log could not be written", map[string]interface{}{
			"entity_type": entityType,
			"entity_id":   entityID,
			"action":      action,
			"error":       err.Error(),
		})
	}
}

func (s *AuditLogService) GetEntityLogs(ctx context.Context, caller domain.Caller, entityType domain.EntityType, entityID int64) ([]*domain.AuditLog, error) {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return nil, err
	}
	if !entityType.Valid() {
		return nil, domain.BadRequest("Unknown entity type %q", entityType)
	}

	logs, err := s.repo.FindByEntityID(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("audit logs could not be loaded: %w", err)
	}

	return logs, nil
}

func (s *AuditLogService) GetAllLogs(ctx context.Context, caller domain.Caller, page, pageSize int) ([]*domain.AuditLog, error) {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultAuditPageSize
	}
	if pageSize > maxAuditPageSize {
		pageSize = maxAuditPageSize
	}

	logs, err := s.repo.FindAll(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("audit logs could not be loaded: %w", err)
	}

	return logs, nil
}
