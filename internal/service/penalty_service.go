package service

import (
	"context"
	"errors"
	"fmt"

	"librarian/internal/auth"
	"librarian/internal/domain"
	"librarian/pkg/logger"
)

const msgPenaltyNotFound = "Penalty not found"

type PenaltyService struct {
	repo   domain.PenaltyRepository
	users  domain.UserRepository
	audit  domain.AuditLogService
	logger logger.Logger
}

func NewPenaltyService(repo domain.PenaltyRepository, users domain.UserRepository, audit domain.AuditLogService, logger logger.Logger) domain.PenaltyService {
	return &PenaltyService{
		repo:   repo,
		users:  users,
		audit:  audit,
		logger: logger,
	}
}

func (s *PenaltyService) List(ctx context.Context, caller domain.Caller, username string) ([]*domain.PenaltyDetail, error) {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return nil, err
	}

	details, err := s.repo.ListDetails(ctx, username, nil)
	if err != nil {
		return nil, fmt.Errorf("penalties could not be listed: %w", err)
	}
	return details, nil
}

func (s *PenaltyService) GetByUser(ctx context.Context, caller domain.Caller, userID int64) ([]*domain.PenaltyDetail, error) {
	if err := auth.Authorize(auth.Authenticated, caller.Role); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && caller.UserID != userID {
		return nil, domain.Forbidden("You are not allowed to view this user's penalty")
	}

	user, err := s.users.FindByID(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("user could not be loaded: %w", err)
	}
	if user == nil {
		return nil, domain.NotFound(msgUserNotFound)
	}

	details, err := s.repo.ListDetails(ctx, "", &userID)
	if err != nil {
		return nil, fmt.Errorf("penalties could not be listed: %w", err)
	}
	return details, nil
}

func (s *PenaltyService) Update(ctx context.Context, caller domain.Caller, id int64, req domain.UpdatePenaltyRequest) (*domain.PenaltyDetail, error) {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return nil, err
	}

	penalty, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("penalty could not be loaded: %w", err)
	}
	if penalty == nil {
		return nil, domain.NotFound(msgPenaltyNotFound)
	}

	start, end, err := req.Apply(penalty)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateWindow(ctx, id, start, end); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.NotFound(msgPenaltyNotFound)
		}
		return nil, fmt.Errorf("penalty could not be updated: %w", err)
	}

	s.audit.LogAction(ctx, caller, domain.EntityTypePenalty, id, domain.ActionTypeUpdate,
		fmt.Sprintf("%s..%s", start.UTC().Format("2006-01-02T15:04:05Z"), end.UTC().Format("2006-01-02T15:04:05Z")))

	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("penalty could not be loaded: %w", err)
	}
	if detail == nil {
		return nil, domain.NotFound(msgPenaltyNotFound)
	}
	return detail, nil
}

func (s *PenaltyService) Delete(ctx context.Context, caller domain.Caller, id int64) error {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.NotFound(msgPenaltyNotFound)
		}
		return fmt.Errorf("penalty could not be deleted: %w", err)
	}

	s.logger.InfoContext(ctx, "Penalty deleted", map[string]interface{}{"penalty_id": id})
	s.audit.LogAction(ctx, caller, domain.EntityTypePenalty, id, domain.ActionTypeDelete, "")
	return nil
}
