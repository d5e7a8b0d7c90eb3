// Package circuitbreaker stops calling a failing dependency for a while and
// lets a single trial call through once the cool-down has passed.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Settings struct {
	Name string
	// Consecutive failures that open the breaker.
	FailureThreshold uint32
	// How long the breaker stays open before allowing a trial call.
	Timeout       time.Duration
	OnStateChange func(name string, from, to State)
}

type CircuitBreaker struct {
	name          string
	threshold     uint32
	timeout       time.Duration
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mutex    sync.Mutex
	state    State
	failures uint32
	openedAt time.Time
	probing  bool
}

func New(st Settings) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:          st.Name,
		threshold:     st.FailureThreshold,
		timeout:       st.Timeout,
		onStateChange: st.OnStateChange,
		now:           time.Now,
	}

	if cb.threshold == 0 {
		cb.threshold = 5
	}
	if cb.timeout <= 0 {
		cb.timeout = 30 * time.Second
	}

	return cb
}

// Execute runs req unless the breaker is open. Errors for which isFailure
// returns false (a cache miss, say) count as success.
func (cb *CircuitBreaker) Execute(req func() error, isFailure func(error) bool) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := req()
	cb.afterRequest(err != nil && (isFailure == nil || isFailure(err)))
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.currentState() {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if cb.probing {
			return ErrOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(failed bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state := cb.currentState()
	if state == StateHalfOpen {
		cb.probing = false
		if failed {
			cb.setState(StateOpen)
		} else {
			cb.setState(StateClosed)
		}
		return
	}

	if !failed {
		cb.failures = 0
		return
	}

	cb.failures++
	if state == StateClosed && cb.failures >= cb.threshold {
		cb.setState(StateOpen)
	}
}

// currentState moves an expired open breaker to half-open. Callers hold the mutex.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && !cb.now().Before(cb.openedAt.Add(cb.timeout)) {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state
	cb.failures = 0
	if state == StateOpen {
		cb.openedAt = cb.now()
	}

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, prev, state)
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.currentState()
}
