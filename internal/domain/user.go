package domain

import (
	"context"
	"strings"
	"time"
)

const UserCodePrefix = "M"

type User struct {
	ID           int64       `json:"id"`
	Code         string      `json:"code"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Role         Role        `json:"role"`
	PasswordHash string      `json:"-"`
	Token        *string     `json:"-"`
	State        RecordState `json:"-"`
	DeletedAt    *time.Time  `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (u *User) IsDeleted() bool {
	return u.State == StateDeleted
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Code: u.Code, Name: u.Name, Email: u.Email}
}

type UserSummary struct {
	ID    int64  `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// UserProfile is the administrator's view of a user.
type UserProfile struct {
	ID                 int64         `json:"id"`
	Code               string        `json:"code"`
	Name               string        `json:"name"`
	Email              string        `json:"email"`
	Role               Role          `json:"role"`
	IsDeleted          bool          `json:"is_deleted"`
	BorrowedBooksCount int           `json:"borrowed_books_count"`
	BorrowedBooks      []BookSummary `json:"borrowed_books,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

type LoginResult struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Password string `json:"password"`
}

func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" || r.Role == "" || r.Password == "" {
		return BadRequest("Name, Email, Role, and Password fields are required!")
	}
	if !r.Role.Valid() {
		return BadRequest("Role must be one of ADMIN or MEMBER!")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return BadRequest("Email and Password fields are required!")
	}
	return nil
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (r UpdateUserRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return BadRequest("Name must not be empty!")
	}
	if r.Email != nil && strings.TrimSpace(*r.Email) == "" {
		return BadRequest("Email must not be empty!")
	}
	if r.Password != nil && *r.Password == "" {
		return BadRequest("Password must not be empty!")
	}
	return nil
}

type UserFilter struct {
	Name string
	Role Role
}

type UserRepository interface {
	FindByID(ctx context.Context, id int64, includeDeleted bool) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	ListProfiles(ctx context.Context, filter UserFilter) ([]*UserProfile, error)
	BorrowedBooks(ctx context.Context, userID int64) ([]BookSummary, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Reactivate(ctx context.Context, user *User) error
	SetToken(ctx context.Context, id int64, token *string) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	Recover(ctx context.Context, id int64) (*User, error)
}

type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, caller Caller) error
	Authenticate(ctx context.Context, token string) (*User, error)
	GetCurrent(ctx context.Context, caller Caller) (*User, error)
	GetAll(ctx context.Context, caller Caller, name string) ([]*UserProfile, error)
	GetByID(ctx context.Context, caller Caller, id int64) (*UserProfile, error)
	Update(ctx context.Context, caller Caller, id int64, req UpdateUserRequest) (*User, error)
	Delete(ctx context.Context, caller Caller, id int64) error
	Recover(ctx context.Context, caller Caller, id int64) (*User, error)
}
