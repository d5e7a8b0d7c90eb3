package domain

import (
	"context"
	"time"
)

type EntityType string
type ActionType string

const (
	EntityTypeBook    EntityType = "book"
	EntityTypeUser    EntityType = "user"
	EntityTypeBorrow  EntityType = "borrow"
	EntityTypePenalty EntityType = "penalty"

	ActionTypeCreate  ActionType = "create"
	ActionTypeUpdate  ActionType = "update"
	ActionTypeDelete  ActionType = "delete"
	ActionTypeRecover ActionType = "recover"
	ActionTypeReturn  ActionType = "return"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeBook, EntityTypeUser, EntityTypeBorrow, EntityTypePenalty:
		return true
	}
	return false
}

type AuditLog struct {
	ID         int64      `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   int64      `json:"entity_id"`
	Action     ActionType `json:"action"`
	ActorID    int64      `json:"actor_id,omitempty"`
	Details    string     `json:"details,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type AuditLogRepository interface {
	Create(ctx context.Context, log *AuditLog) error
	FindByEntityID(ctx context.Context, entityType EntityType, entityID int64) ([]*AuditLog, error)
	FindAll(ctx context.Context, limit, offset int) ([]*AuditLog, error)
}

type AuditLogService interface {
	LogAction(ctx context.Context, actor Caller, entityType EntityType, entityID int64, action ActionType, details string)
	GetEntityLogs(ctx context.Context, caller Caller, entityType EntityType, entityID int64) ([]*AuditLog, error)
	GetAllLogs(ctx context.Context, caller Caller, page, pageSize int) ([]*AuditLog, error)
}
