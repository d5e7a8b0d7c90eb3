package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"librarian/internal/auth"
	"librarian/internal/domain"
	"librarian/pkg/logger"
)

const (
	msgUserNotFound  = "User Not Found!"
	msgEmailExists   = "Email already exists!"
	msgUnauthorized  = "Unauthorized!"
	msgWrongPassword = "Email or Password is wrong!"
)

type UserService struct {
	repo   domain.UserRepository
	hasher auth.PasswordHasher
	tokens auth.TokenIssuer
	audit  domain.AuditLogService
	logger logger.Logger
	clock  Clock
}

func NewUserService(
	repo domain.UserRepository,
	hasher auth.PasswordHasher,
	tokens auth.TokenIssuer,
	audit domain.AuditLogService,
	logger logger.Logger,
	clock Clock,
) domain.UserService {
	if clock == nil {
		clock = SystemClock
	}
	return &UserService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		audit:  audit,
		logger: logger,
		clock:  clock,
	}
}

// Register creates a member or administrator account. Registering the email
// of a soft-deleted account brings that account back with the new details.
func (s *UserService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.Email)
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("email could not be checked: %w", err)
	}
	if existing != nil && !existing.IsDeleted() {
		return nil, domain.BadRequest(msgEmailExists)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.Name = strings.TrimSpace(req.Name)
		existing.Role = req.Role
		existing.PasswordHash = hash
		if err := s.repo.Reactivate(ctx, existing); err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				return nil, domain.BadRequest(msgEmailExists)
			}
			return nil, fmt.Errorf("user could not be reactivated: %w", err)
		}

		s.logger.InfoContext(ctx, "User reactivated by registration", map[string]interface{}{"user_id": existing.ID})
		s.audit.LogAction(ctx, domain.Caller{UserID: existing.ID, Role: existing.Role}, domain.EntityTypeUser, existing.ID, domain.ActionTypeRecover, "register")
		return existing, nil
	}

	user := &domain.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Role:         req.Role,
		PasswordHash: hash,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.BadRequest(msgEmailExists)
		}
		return nil, fmt.Errorf("user could not be created: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", map[string]interface{}{"user_id": user.ID, "code": user.Code, "role": user.Role})
	s.audit.LogAction(ctx, domain.Caller{UserID: user.ID, Role: user.Role}, domain.EntityTypeUser, user.ID, domain.ActionTypeCreate, "register")
	return user, nil
}

// Login verifies the credentials and stores a fresh token, replacing any
// earlier session.
func (s *UserService) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, fmt.Errorf("user could not be loaded: %w", err)
	}
	if user == nil || user.IsDeleted() {
		return nil, domain.NotFound(msgUserNotFound)
	}

	ok, err := s.hasher.Compare(user.PasswordHash, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.WarnContext(ctx, "Login with wrong password", map[string]interface{}{"user_id": user.ID})
		return nil, domain.BadRequest(msgWrongPassword)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetToken(ctx, user.ID, &token); err != nil {
		return nil, fmt.Errorf("session could not be stored: %w", err)
	}
	user.Token = &token

	return &domain.LoginResult{User: user, Token: token}, nil
}

func (s *UserService) Logout(ctx context.Context, caller domain.Caller) error {
	if err := auth.Authorize(auth.Authenticated, caller.Role); err != nil {
		return err
	}

	if err := s.repo.SetToken(ctx, caller.UserID, nil); err != nil {
		return fmt.Errorf("session could not be cleared: %w", err)
	}
	return nil
}

// Authenticate resolves a bearer token to its live user. The token must be
// the one stored at the last login.
func (s *UserService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.Unauthorized(msgUnauthorized)
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, domain.Unauthorized(msgUnauthorized)
	}

	user, err := s.repo.FindByID(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("user could not be loaded: %w", err)
	}
	if user == nil || user.Token == nil || *user.Token != token {
		return nil, domain.Unauthorized(msgUnauthorized)
	}

	return user, nil
}

func (s *UserService) GetCurrent(ctx context.Context, caller domain.Caller) (*domain.User, error) {
	if err := auth.Authorize(auth.Authenticated, caller.Role); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, caller.UserID, false)
	if err != nil {
		return nil, fmt.Errorf("user could not be loaded: %w", err)
	}
	if user == nil {
		return nil, domain.NotFound(msgUserNotFound)
	}
	return user, nil
}

// GetAll lists member accounts, newest first, including deleted ones.
func (s *UserService) GetAll(ctx context.Context, caller domain.Caller, name string) ([]*domain.UserProfile, error) {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return nil, err
	}

	profiles, err := s.repo.ListProfiles(ctx, domain.UserFilter{Name: name, Role: domain.RoleMember})
	if err != nil {
		return nil, fmt.Errorf("users could not be listed: %w", err)
	}
	return profiles, nil
}

func (s *UserService) GetByID(ctx context.Context, caller domain.Caller, id int64) (*domain.UserProfile, error) {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("user could not be loaded: %w", err)
	}
	if user == nil {
		return nil, domain.NotFound(msgUserNotFound)
	}

	books, err := s.repo.BorrowedBooks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("borrowed books could not be loaded: %w", err)
	}

	return &domain.UserProfile{
		ID:                 user.ID,
		Code:               user.Code,
		Name:               user.Name,
		Email:              user.Email,
		Role:               user.Role,
		IsDeleted:          user.IsDeleted(),
		BorrowedBooksCount: len(books),
		BorrowedBooks:      books,
		CreatedAt:          user.CreatedAt,
	}, nil
}

// Update changes name, email or password. Members may only edit themselves.
func (s *UserService) Update(ctx context.Context, caller domain.Caller, id int64, req domain.UpdateUserRequest) (*domain.User, error) {
	if err := auth.Authorize(auth.Authenticated, caller.Role); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && caller.UserID != id {
		return nil, domain.Forbidden("You are not allowed to update this user!")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("user could not be loaded: %w", err)
	}
	if user == nil {
		return nil, domain.NotFound(msgUserNotFound)
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		taken, err := s.repo.EmailTaken(ctx, email, user.ID)
		if err != nil {
			return nil, fmt.Errorf("email could not be checked: %w", err)
		}
		if taken {
			return nil, domain.BadRequest(msgEmailExists)
		}
		user.Email = email
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateEmail):
			return nil, domain.BadRequest(msgEmailExists)
		case errors.Is(err, domain.ErrRecordNotFound):
			return nil, domain.NotFound(msgUserNotFound)
		}
		return nil, fmt.Errorf("user could not be updated: %w", err)
	}

	s.audit.LogAction(ctx, caller, domain.EntityTypeUser, user.ID, domain.ActionTypeUpdate, "")
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, caller domain.Caller, id int64) error {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, id, s.clock().UTC()); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.NotFound(msgUserNotFound)
		}
		return fmt.Errorf("user could not be deleted: %w", err)
	}

	s.audit.LogAction(ctx, caller, domain.EntityTypeUser, id, domain.ActionTypeDelete, "")
	return nil
}

func (s *UserService) Recover(ctx context.Context, caller domain.Caller, id int64) (*domain.User, error) {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return nil, err
	}

	user, err := s.repo.Recover(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.NotFound("User Not Found or still activated!")
		}
		return nil, fmt.Errorf("user could not be recovered: %w", err)
	}

	s.audit.LogAction(ctx, caller, domain.EntityTypeUser, id, domain.ActionTypeRecover, "")
	return user, nil
}
