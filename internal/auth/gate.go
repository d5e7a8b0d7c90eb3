// Package auth holds the role gate and the credential primitives used by
// the membership service.
package auth

import (
	"librarian/internal/domain"
)

// RoleSet is the set of roles allowed to run an operation.
type RoleSet struct {
	roles        []domain.Role
	allowMissing bool
}

var (
	// AllRoles admits anyone, including a caller with no role.
	AllRoles      = RoleSet{roles: []domain.Role{domain.RoleAdmin, domain.RoleMember}, allowMissing: true}
	Authenticated = RoleSet{roles: []domain.Role{domain.RoleAdmin, domain.RoleMember}}
	MemberOnly    = RoleSet{roles: []domain.Role{domain.RoleMember}}
	AdminOnly     = RoleSet{roles: []domain.Role{domain.RoleAdmin}}
)

func (s RoleSet) Allows(role domain.Role) bool {
	if role == "" {
		return s.allowMissing
	}
	for _, r := range s.roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize fails with a FORBIDDEN error unless actual belongs to required.
func Authorize(required RoleSet, actual domain.Role) error {
	if required.Allows(actual) {
		return nil
	}
	return domain.Forbidden("Forbidden!")
}
