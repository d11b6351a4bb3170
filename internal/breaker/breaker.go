// Package breaker wraps sony/gobreaker into the per-pair circuit breakers
// the analytical core consults before dispatching gateway work, plus one
// shared aggregate-scope breaker for cross-pair gateway failures.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker"
	"github.com/rs/zerolog/log"

	"github.com/marketintel/engine/internal/domain"
)

// AggregateScope names the single shared breaker used only by Screen's own
// fault envelope, never by individual constituent pairs.
const AggregateScope = "__aggregate__"

// recoveryProbeSkew pads the scheduled recovery probe past the breaker's own
// cooldown so it never races gobreaker's internal open-state expiry.
const recoveryProbeSkew = 10 * time.Millisecond

// Manager owns one gobreaker.CircuitBreaker per named scope (a pair symbol,
// or AggregateScope), constructed lazily on first use.
type Manager struct {
	threshold uint32
	cooldown  time.Duration

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	recovery *RecoveryQueue
}

// NewManager builds a Manager whose breakers trip after `threshold`
// consecutive failures and stay open for `cooldown`.
func NewManager(threshold int, cooldown time.Duration) *Manager {
	return &Manager{
		threshold: uint32(threshold),
		cooldown:  cooldown,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (m *Manager) breakerFor(scope string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[scope]; ok {
		return b
	}
	settings := gobreaker.Settings{
		Name:     scope,
		Interval: m.cooldown,
		Timeout:  m.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= m.threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("scope", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			if to == gobreaker.StateOpen {
				m.enqueueRecovery(name)
			}
		},
	}
	b := gobreaker.NewCircuitBreaker(settings)
	m.breakers[scope] = b
	return b
}

// AttachRecovery wires a RecoveryQueue to this Manager: whenever a scope's
// breaker opens, a deferred no-op probe is enqueued for that scope so the
// queue's own rate-limited admission control (not the caller's retry
// cadence) drives the next recovery attempt once the cooldown elapses.
func (m *Manager) AttachRecovery(q *RecoveryQueue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovery = q
}

// enqueueRecovery schedules scope's no-op recovery probe once the breaker's
// own cooldown has elapsed (before that, gobreaker would reject the probe
// outright), then drains the queue so scopes that tripped around the same
// time are coalesced behind the queue's MAX_CONCURRENT admission control.
func (m *Manager) enqueueRecovery(scope string) {
	m.mu.Lock()
	q, cooldown := m.recovery, m.cooldown
	m.mu.Unlock()
	if q == nil {
		return
	}
	time.AfterFunc(cooldown+recoveryProbeSkew, func() {
		q.Enqueue(scope, func(ctx context.Context) error {
			return m.Call(ctx, scope, func(context.Context) error { return nil })
		})
		go q.Run(context.Background())
	})
}

// Call executes fn guarded by the named scope's breaker. An open breaker
// short-circuits with a domain.KindServiceUnavailable error without
// invoking fn. Validation errors returned by fn never count as failures.
func (m *Manager) Call(ctx context.Context, scope string, fn func(context.Context) error) error {
	b := m.breakerFor(scope)
	result, err := b.Execute(func() (interface{}, error) {
		callErr := fn(ctx)
		if callErr != nil && domain.IsValidation(callErr) {
			// Validation errors never trip the breaker: report success to
			// gobreaker and smuggle the real error out via the result value.
			return callErr, nil
		}
		return nil, callErr
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return domain.NewError(domain.KindServiceUnavailable, scope, fmt.Sprintf("circuit breaker open for %s", scope), err)
	}
	if err != nil {
		return err
	}
	if result != nil {
		return result.(error)
	}
	return nil
}

// State reports the current state string ("closed", "open", "half-open")
// for a scope, without creating it if absent.
func (m *Manager) State(scope string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[scope]
	if !ok {
		return "closed"
	}
	switch b.State() {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
