package domain

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Caller is the already-verified identity attached to a request.
// A zero Role means nobody is logged in.
type Caller struct {
	UserID int64
	Role   Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// RecordState replaces a bare nullable deletion timestamp.
type RecordState string

const (
	StateActive  RecordState = "ACTIVE"
	StateDeleted RecordState = "DELETED"
)
