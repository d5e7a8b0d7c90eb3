package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

func newTestBreaker(threshold uint32) (*CircuitBreaker, *time.Time) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := New(Settings{Name: "test", FailureThreshold: threshold, Timeout: time.Minute})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func fail() error    { return errDown }
func succeed() error { return nil }

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(fail, nil), errDown)
	}
	assert.NoError(t, cb.Execute(succeed, nil))
	assert.Equal(t, StateClosed, cb.State(), "a success resets the count")

	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail, nil)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestHalfOpenProbe(t *testing.T) {
	cb, now := newTestBreaker(1)
	_ = cb.Execute(fail, nil)
	require.Equal(t, StateOpen, cb.State())

	*now = now.Add(time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(fail, nil), errDown)
	assert.Equal(t, StateOpen, cb.State(), "a failed trial call reopens")

	*now = now.Add(time.Minute)
	assert.NoError(t, cb.Execute(succeed, nil))
	assert.Equal(t, StateClosed, cb.State())
}

func TestIgnoredErrorsCountAsSuccess(t *testing.T) {
	cb, _ := newTestBreaker(1)
	miss := errors.New("miss")

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return miss }, func(err error) bool { return !errors.Is(err, miss) })
		assert.ErrorIs(t, err, miss)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestStateChangeCallback(t *testing.T) {
	var transitions []string
	cb := New(Settings{
		Name:             "cache",
		FailureThreshold: 1,
		Timeout:          time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(fail, nil)
	assert.Equal(t, []string{"cache:closed->open"}, transitions)
}
