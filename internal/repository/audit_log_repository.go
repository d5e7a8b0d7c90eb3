package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"librarian/internal/domain"
	"librarian/pkg/logger"
)

type AuditLogRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewAuditLogRepository(db *sql.DB, logger logger.Logger) domain.AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

func (r *AuditLogRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	query := `
		INSERT INTO audit_logs (entity_type, entity_id, action, actor_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	log.CreatedAt = time.Now().UTC()

	var actor sql.NullInt64
	if log.ActorID != 0 {
		actor = sql.NullInt64{Int64: log.ActorID, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query,
		string(log.EntityType),
		log.EntityID,
		string(log.Action),
		actor,
		log.Details,
		log.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Audit log could not be created", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("audit log could not be created: %w", err)
	}

	log.ID, err = res.LastInsertId()
	return err
}

func (r *AuditLogRepository) FindByEntityID(ctx context.Context, entityType domain.EntityType, entityID int64) ([]*domain.AuditLog, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor_id, details, created_at
		FROM audit_logs
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, string(entityType), entityID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Audit logs could not be loaded", map[string]interface{}{
			"entity_type": entityType,
			"entity_id":   entityID,
			"error":       err.Error(),
		})
		return nil, fmt.Errorf("audit logs could not be loaded: %w", err)
	}
	defer rows.Close()

	return r.scanLogs(ctx, rows)
}

func (r *AuditLogRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.AuditLog, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor_id, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.ErrorContext(ctx, "Audit logs could not be loaded", map[string]interface{}{
			"limit":  limit,
			"offset": offset,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("audit logs could not be loaded: %w", err)
	}
	defer rows.Close()

	return r.scanLogs(ctx, rows)
}

func (r *AuditLogRepository) scanLogs(ctx context.Context, rows *sql.Rows) ([]*domain.AuditLog, error) {
	logs := make([]*domain.AuditLog, 0)
	for rows.Next() {
		var log domain.AuditLog
		var entityType, action string
		var actor sql.NullInt64
		var details sql.NullString

		if err := rows.Scan(&log.ID, &entityType, &log.EntityID, &action, &actor, &details, &log.CreatedAt); err != nil {
			r.logger.ErrorContext(ctx, "Audit log row could not be read", map[string]interface{}{"error": err.Error()})
			return nil, fmt.Errorf("audit log row could not be read: %w", err)
		}

		log.EntityType = domain.EntityType(entityType)
		log.Action = domain.ActionType(action)
		log.ActorID = actor.Int64
		log.Details = details.String

		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit log rows could not be read: %w", err)
	}

	return logs, nil
}
