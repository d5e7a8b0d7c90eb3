package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarian/internal/domain"
)

// latePenalty produces one penalty for a fresh member through a late return.
func latePenalty(t *testing.T, f *fixture, name, code string) (domain.Caller, *domain.PenaltyDetail) {
	t.Helper()
	ctx := context.Background()
	member := f.member(t, name)
	b := f.addBook(t, code, 1)

	borrow, err := f.borrows.CreateBorrow(ctx, member, borrowReq(f.now.Add(-10*day), b.ID))
	require.NoError(t, err)
	_, err = f.borrows.ReturnBorrow(ctx, member, borrow.ID, returnReq(f.now))
	require.NoError(t, err)

	penalties, err := f.penalties.GetByUser(ctx, member, member.UserID)
	require.NoError(t, err)
	require.Len(t, penalties, 1)
	return member, penalties[0]
}

func TestPenaltyUpdateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p := latePenalty(t, f, "ana", "B1")

	start, end := p.StartDate, p.EndDate
	at := func(d time.Duration) *time.Time { v := start.Add(d); return &v }

	cases := []struct {
		name     string
		req      domain.UpdatePenaltyRequest
		contains string
	}{
		{"start after end", domain.UpdatePenaltyRequest{StartDate: at(5 * day), EndDate: at(day)}, "Start date must be less than end date"},
		{"start not after old start", domain.UpdatePenaltyRequest{StartDate: at(-day)}, "greater than the old start date"},
		{"start equal to old start", domain.UpdatePenaltyRequest{StartDate: at(0)}, "greater than the old start date"},
		{"start beyond old end", domain.UpdatePenaltyRequest{StartDate: at(4 * day)}, "Start date must be less than end date"},
		{"end before old start", domain.UpdatePenaltyRequest{EndDate: at(-time.Hour)}, "End date must be greater than start date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.penalties.Update(ctx, f.admin, p.ID, tc.req)
			requireKind(t, err, domain.ErrBadRequest, tc.contains)
		})
	}

	updated, err := f.penalties.Update(ctx, f.admin, p.ID, domain.UpdatePenaltyRequest{StartDate: at(day)})
	require.NoError(t, err)
	assert.True(t, updated.StartDate.Equal(start.Add(day)))
	assert.True(t, updated.EndDate.Equal(end))

	updated, err = f.penalties.Update(ctx, f.admin, p.ID, domain.UpdatePenaltyRequest{EndDate: at(10 * day)})
	require.NoError(t, err)
	assert.True(t, updated.EndDate.Equal(start.Add(10*day)))

	updated, err = f.penalties.Update(ctx, f.admin, p.ID, domain.UpdatePenaltyRequest{StartDate: at(-2 * day), EndDate: at(-day)})
	require.NoError(t, err)
	assert.True(t, updated.StartDate.Equal(start.Add(-2*day)))

	unchanged, err := f.penalties.Update(ctx, f.admin, p.ID, domain.UpdatePenaltyRequest{})
	require.NoError(t, err)
	assert.True(t, unchanged.EndDate.Equal(start.Add(-day)))

	_, err = f.penalties.Update(ctx, f.admin, 999, domain.UpdatePenaltyRequest{EndDate: at(day)})
	requireKind(t, err, domain.ErrNotFound, "Penalty not found")
}

func TestShorteningPenaltyLiftsBorrowBan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana, p := latePenalty(t, f, "ana", "B1")
	other := f.addBook(t, "B2", 1)

	_, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, other.ID))
	requireKind(t, err, domain.ErrBadRequest, "still have penalty")

	end := f.now.Add(-time.Minute)
	start := end.Add(-time.Hour)
	_, err = f.penalties.Update(ctx, f.admin, p.ID, domain.UpdatePenaltyRequest{StartDate: &start, EndDate: &end})
	require.NoError(t, err)

	_, err = f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, other.ID))
	assert.NoError(t, err)
}

func TestPenaltyListingAndAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana, p := latePenalty(t, f, "ana", "B1")
	budi, _ := latePenalty(t, f, "budi", "B2")

	assert.Equal(t, ana.UserID, p.User.ID)
	assert.Equal(t, "ana", p.User.Name)

	_, err := f.penalties.List(ctx, ana, "")
	requireKind(t, err, domain.ErrForbidden, "")

	all, err := f.penalties.List(ctx, f.admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := f.penalties.List(ctx, f.admin, "BUD")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, budi.UserID, filtered[0].User.ID)

	_, err = f.penalties.GetByUser(ctx, budi, ana.UserID)
	requireKind(t, err, domain.ErrForbidden, "")

	_, err = f.penalties.GetByUser(ctx, f.admin, 999)
	requireKind(t, err, domain.ErrNotFound, "")

	_, err = f.penalties.GetByUser(ctx, domain.Caller{}, ana.UserID)
	requireKind(t, err, domain.ErrForbidden, "")
}

func TestDeletePenalty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana, p := latePenalty(t, f, "ana", "B1")

	requireKind(t, f.penalties.Delete(ctx, ana, p.ID), domain.ErrForbidden, "")
	require.NoError(t, f.penalties.Delete(ctx, f.admin, p.ID))
	requireKind(t, f.penalties.Delete(ctx, f.admin, p.ID), domain.ErrNotFound, "")

	left, err := f.penalties.GetByUser(ctx, ana, ana.UserID)
	require.NoError(t, err)
	assert.Empty(t, left)
}
