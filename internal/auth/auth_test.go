package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"librarian/internal/domain"
)

func TestAuthorize(t *testing.T) {
	cases := []struct {
		name    string
		set     RoleSet
		role    domain.Role
		allowed bool
	}{
		{"all roles without login", AllRoles, "", true},
		{"all roles member", AllRoles, domain.RoleMember, true},
		{"authenticated without login", Authenticated, "", false},
		{"authenticated admin", Authenticated, domain.RoleAdmin, true},
		{"member only admin", MemberOnly, domain.RoleAdmin, false},
		{"member only member", MemberOnly, domain.RoleMember, true},
		{"admin only member", AdminOnly, domain.RoleMember, false},
		{"admin only admin", AdminOnly, domain.RoleAdmin, true},
		{"admin only unknown", AdminOnly, domain.Role("LIBRARIAN"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.set, tc.role)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrForbidden)
			assert.NotErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", hash)

	ok, err := h.Compare(hash, "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Compare("not-a-hash", "secret")
	assert.Error(t, err)
}

func TestJWTIssuer(t *testing.T) {
	issuer := NewJWTIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(42)
	require.NoError(t, err)

	id, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = NewJWTIssuer("other-secret", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTIssuerRejectsExpiredToken(t *testing.T) {
	issuer := NewJWTIssuer("test-secret", time.Minute)
	issued := time.Now()
	issuer.now = func() time.Time { return issued }

	token, err := issuer.Issue(7)
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
