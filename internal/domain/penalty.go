package domain

import (
	"context"
	"time"
)

type Penalty struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}

// ActiveAt reports whether the penalty still bars its user from borrowing.
func (p *Penalty) ActiveAt(now time.Time) bool {
	return !p.EndDate.Before(now)
}

type PenaltyDetail struct {
	ID        int64       `json:"id"`
	StartDate time.Time   `json:"start_date"`
	EndDate   time.Time   `json:"end_date"`
	CreatedAt time.Time   `json:"created_at"`
	User      UserSummary `json:"user"`
}

type UpdatePenaltyRequest struct {
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// Apply checks the requested window against the stored one and returns the
// merged dates.
func (r UpdatePenaltyRequest) Apply(existing *Penalty) (time.Time, time.Time, error) {
	start, end := existing.StartDate, existing.EndDate

	switch {
	case r.StartDate != nil && r.EndDate != nil:
		if r.StartDate.After(*r.EndDate) {
			return start, end, BadRequest("Start date must be less than end date")
		}
		start, end = *r.StartDate, *r.EndDate
	case r.StartDate != nil:
		if !r.StartDate.After(existing.StartDate) {
			return start, end, BadRequest("Start date must be greater than the old start date")
		}
		if r.StartDate.After(existing.EndDate) {
			return start, end, BadRequest("Start date must be less than end date")
		}
		start = *r.StartDate
	case r.EndDate != nil:
		if r.EndDate.Before(existing.StartDate) {
			return start, end, BadRequest("End date must be greater than start date")
		}
		end = *r.EndDate
	}

	return start, end, nil
}

type PenaltyRepository interface {
	FindByID(ctx context.Context, id int64) (*Penalty, error)
	CountActiveByUser(ctx context.Context, userID int64, now time.Time) (int, error)
	ListDetails(ctx context.Context, username string, userID *int64) ([]*PenaltyDetail, error)
	FindDetail(ctx context.Context, id int64) (*PenaltyDetail, error)
	UpdateWindow(ctx context.Context, id int64, start, end time.Time) error
	Delete(ctx context.Context, id int64) error
}

type PenaltyService interface {
	List(ctx context.Context, caller Caller, username string) ([]*PenaltyDetail, error)
	GetByUser(ctx context.Context, caller Caller, userID int64) ([]*PenaltyDetail, error)
	Update(ctx context.Context, caller Caller, id int64, req UpdatePenaltyRequest) (*PenaltyDetail, error)
	Delete(ctx context.Context, caller Caller, id int64) error
}
