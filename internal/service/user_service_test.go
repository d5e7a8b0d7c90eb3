package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarian/internal/domain"
)

func TestRegisterAssignsSequentialCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana, err := f.users.Register(ctx, domain.RegisterRequest{Name: "Ana", Email: "ana@example.com", Role: domain.RoleMember, Password: "pw"})
	require.NoError(t, err)
	budi, err := f.users.Register(ctx, domain.RegisterRequest{Name: "Budi", Email: "budi@example.com", Role: domain.RoleMember, Password: "pw"})
	require.NoError(t, err)

	// The fixture administrator took M001.
	assert.Equal(t, "M002", ana.Code)
	assert.Equal(t, "M003", budi.Code)
	assert.NotEqual(t, "pw", ana.PasswordHash)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		req      domain.RegisterRequest
		contains string
	}{
		{"missing name", domain.RegisterRequest{Email: "x@example.com", Role: domain.RoleMember, Password: "pw"}, "required"},
		{"missing password", domain.RegisterRequest{Name: "X", Email: "x@example.com", Role: domain.RoleMember}, "required"},
		{"unknown role", domain.RegisterRequest{Name: "X", Email: "x@example.com", Role: "GUEST", Password: "pw"}, "Role must be"},
		{"existing email", domain.RegisterRequest{Name: "X", Email: "admin@example.com", Role: domain.RoleMember, Password: "pw"}, "Email already exists"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.users.Register(ctx, tc.req)
			requireKind(t, err, domain.ErrBadRequest, tc.contains)
		})
	}
}

func TestRegisterReactivatesDeletedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")

	require.NoError(t, f.users.Delete(ctx, f.admin, ana.UserID))

	back, err := f.users.Register(ctx, domain.RegisterRequest{Name: "Ana Again", Email: "ana@example.com", Role: domain.RoleMember, Password: "new"})
	require.NoError(t, err)
	assert.Equal(t, ana.UserID, back.ID)
	assert.Equal(t, "Ana Again", back.Name)

	_, err = f.users.Login(ctx, domain.LoginRequest{Email: "ana@example.com", Password: "new"})
	assert.NoError(t, err)
}

func TestLoginAuthenticateLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")

	_, err := f.users.Login(ctx, domain.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	requireKind(t, err, domain.ErrBadRequest, "Email or Password is wrong")

	_, err = f.users.Login(ctx, domain.LoginRequest{Email: "nobody@example.com", Password: "secret"})
	requireKind(t, err, domain.ErrNotFound, "User Not Found")

	result, err := f.users.Login(ctx, domain.LoginRequest{Email: "ana@example.com", Password: "secret"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)

	user, err := f.users.Authenticate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, ana.UserID, user.ID)

	_, err = f.users.Authenticate(ctx, "not-a-token")
	requireKind(t, err, domain.ErrUnauthorized, "")

	_, err = f.users.Authenticate(ctx, "")
	requireKind(t, err, domain.ErrUnauthorized, "")

	require.NoError(t, f.users.Logout(ctx, ana))

	_, err = f.users.Authenticate(ctx, result.Token)
	requireKind(t, err, domain.ErrUnauthorized, "")
}

func TestDeletedUserCannotLoginOrAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")

	result, err := f.users.Login(ctx, domain.LoginRequest{Email: "ana@example.com", Password: "secret"})
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(ctx, f.admin, ana.UserID))

	_, err = f.users.Authenticate(ctx, result.Token)
	requireKind(t, err, domain.ErrUnauthorized, "")

	_, err = f.users.Login(ctx, domain.LoginRequest{Email: "ana@example.com", Password: "secret"})
	requireKind(t, err, domain.ErrNotFound, "")
}

func TestUserListAndProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	f.member(t, "budi")
	b := f.addBook(t, "B1", 1)

	borrow, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	require.NoError(t, err)
	_, err = f.borrows.ReturnBorrow(ctx, ana, borrow.ID, returnReq(f.now))
	require.NoError(t, err)

	_, err = f.users.GetAll(ctx, ana, "")
	requireKind(t, err, domain.ErrForbidden, "")

	all, err := f.users.GetAll(ctx, f.admin, "")
	require.NoError(t, err)
	require.Len(t, all, 2, "administrators are not listed")
	assert.Equal(t, "budi", all[0].Name)

	filtered, err := f.users.GetAll(ctx, f.admin, "AN")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 1, filtered[0].BorrowedBooksCount)

	profile, err := f.users.GetByID(ctx, f.admin, ana.UserID)
	require.NoError(t, err)
	require.Len(t, profile.BorrowedBooks, 1)
	assert.Equal(t, b.Code, profile.BorrowedBooks[0].Code)

	_, err = f.users.GetByID(ctx, f.admin, 999)
	requireKind(t, err, domain.ErrNotFound, "")
}

func TestUserUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	budi := f.member(t, "budi")

	name := "Ana Maria"
	updated, err := f.users.Update(ctx, ana, ana.UserID, domain.UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	_, err = f.users.Update(ctx, budi, ana.UserID, domain.UpdateUserRequest{Name: &name})
	requireKind(t, err, domain.ErrForbidden, "")

	taken := "budi@example.com"
	_, err = f.users.Update(ctx, ana, ana.UserID, domain.UpdateUserRequest{Email: &taken})
	requireKind(t, err, domain.ErrBadRequest, "Email already exists")

	password := "changed"
	_, err = f.users.Update(ctx, f.admin, ana.UserID, domain.UpdateUserRequest{Password: &password})
	require.NoError(t, err)

	_, err = f.users.Login(ctx, domain.LoginRequest{Email: "ana@example.com", Password: "changed"})
	assert.NoError(t, err)
}

func TestUserDeleteAndRecover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")

	_, err := f.users.Recover(ctx, f.admin, ana.UserID)
	requireKind(t, err, domain.ErrNotFound, "still activated")

	requireKind(t, f.users.Delete(ctx, ana, ana.UserID), domain.ErrForbidden, "")
	require.NoError(t, f.users.Delete(ctx, f.admin, ana.UserID))
	requireKind(t, f.users.Delete(ctx, f.admin, ana.UserID), domain.ErrNotFound, "")

	profile, err := f.users.GetByID(ctx, f.admin, ana.UserID)
	require.NoError(t, err)
	assert.True(t, profile.IsDeleted)

	recovered, err := f.users.Recover(ctx, f.admin, ana.UserID)
	require.NoError(t, err)
	assert.False(t, recovered.IsDeleted())
}
