package polling

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soupnight/souproom/internal/client"
)

// ConnectionState is the engine's view of its link to the server.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
	StateRateLimited  ConnectionState = "rate_limited"
)

// Fetcher fetches the current session record. *client.Client satisfies it.
type Fetcher interface {
	GetSession(ctx context.Context, sessionID string) (*client.SessionInfo, error)
}

// Engine polls a session and reports updates to a subscriber, adapting
// its cadence to observed activity and backing off on failures. At
// most one fetch is in flight at a time; a new cycle is scheduled only
// after the previous one settles.
type Engine struct {
	cfg      Config
	fetcher  Fetcher
	onUpdate func(*client.SessionInfo)
	onError  func(error)

	mu             sync.Mutex
	sessionID      string
	state          ConnectionState
	polling        bool
	visible        bool
	retryCount     int
	interval       time.Duration
	lastKnownTurns int
	lastChangeAt   time.Time
	lastSyncAt     time.Time
	timer          *time.Timer
	cancel         context.CancelFunc
	ctx            context.Context

	// gen invalidates scheduled and in-flight cycles whenever the
	// observed session changes or polling stops, so a superseded cycle
	// can never deliver a stale update.
	gen int
}

// NewEngine creates a polling engine. onUpdate receives every
// successful fetch; onError receives classified failures. Either
// callback may be nil.
func NewEngine(cfg Config, fetcher Fetcher, onUpdate func(*client.SessionInfo), onError func(error)) *Engine {
	return &Engine{
		cfg:      cfg,
		fetcher:  fetcher,
		onUpdate: onUpdate,
		onError:  onError,
		state:    StateDisconnected,
		visible:  true,
		interval: cfg.BaseInterval,
	}
}

// SetSession changes the observed session id. Any pending or in-flight
// cycle for the previous id is invalidated immediately. An empty id
// clears observation. The caller restarts polling explicitly.
func (e *Engine) SetSession(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessionID == sessionID {
		return
	}
	e.stopLocked()
	e.sessionID = sessionID
	e.retryCount = 0
	e.lastKnownTurns = 0
	e.lastChangeAt = time.Time{}
	e.lastSyncAt = time.Time{}
	e.interval = e.cfg.BaseInterval
}

// Start begins polling. A no-op while already polling or when no
// session id is set. Starting from the terminal error state resets the
// retry budget (the explicit restart the contract requires).
func (e *Engine) Start() {
	e.mu.Lock()
	if e.polling || e.sessionID == "" {
		e.mu.Unlock()
		return
	}
	e.polling = true
	e.retryCount = 0
	e.gen++
	gen := e.gen
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.mu.Unlock()

	go e.poll(gen)
}

// Stop halts polling: the pending timer is cleared, any in-flight
// fetch is cancelled, and the state returns to disconnected.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.state = StateDisconnected
}

func (e *Engine) stopLocked() {
	e.gen++
	e.polling = false
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// SetVisible reflects host page/tab visibility. Hiding fully suspends
// polling; becoming visible resumes it unless the engine has already
// reached the terminal error state.
func (e *Engine) SetVisible(visible bool) {
	e.mu.Lock()
	e.visible = visible
	if !visible {
		e.stopLocked()
		e.mu.Unlock()
		return
	}
	resume := e.sessionID != "" && e.state != StateError && !e.polling
	e.mu.Unlock()

	if resume {
		e.Start()
	}
}

// ForceSync triggers an immediate cycle, cancelling the pending timer.
// A no-op when not polling.
func (e *Engine) ForceSync() {
	e.mu.Lock()
	if !e.polling || e.sessionID == "" {
		e.mu.Unlock()
		return
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	gen := e.gen
	e.mu.Unlock()

	go e.poll(gen)
}

// State returns the current connection state.
func (e *Engine) State() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsPolling reports whether the engine has an active polling loop.
func (e *Engine) IsPolling() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.polling
}

// RetryCount returns the consecutive failure count.
func (e *Engine) RetryCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retryCount
}

// Interval returns the delay the engine last scheduled with.
func (e *Engine) Interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

// LastSyncTime returns when the last successful fetch settled.
func (e *Engine) LastSyncTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSyncAt
}

// LastKnownTurnCount returns the turn count from the last successful
// fetch. It may lag the server but never exceeds it.
func (e *Engine) LastKnownTurnCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastKnownTurns
}

// poll runs one fetch cycle and schedules its successor.
func (e *Engine) poll(gen int) {
	e.mu.Lock()
	if gen != e.gen || !e.polling {
		e.mu.Unlock()
		return
	}
	e.state = StateConnecting
	sessionID := e.sessionID
	ctx := e.ctx
	e.mu.Unlock()

	info, err := e.fetcher.GetSession(ctx, sessionID)

	e.mu.Lock()
	if gen != e.gen || !e.polling {
		// Superseded while in flight; drop the result.
		e.mu.Unlock()
		return
	}

	if err == nil {
		e.handleSuccess(gen, info)
		return
	}
	if isRateLimitSignal(err) {
		e.handleRateLimited(gen)
		return
	}
	e.handleFailure(gen, err)
}

// handleSuccess runs with e.mu held and releases it.
func (e *Engine) handleSuccess(gen int, info *client.SessionInfo) {
	now := time.Now()
	e.retryCount = 0
	e.state = StateConnected
	e.lastSyncAt = now

	changed := len(info.History) != e.lastKnownTurns
	if changed {
		e.lastChangeAt = now
		e.lastKnownTurns = len(info.History)
	}

	e.interval = e.cfg.Interval(now.Sub(e.lastChangeAt), changed)
	e.schedule(gen, e.interval)
	onUpdate := e.onUpdate
	e.mu.Unlock()

	if onUpdate != nil {
		onUpdate(info)
	}
}

// handleRateLimited runs with e.mu held and releases it. Polling is
// suspended for the cooldown window without consuming retries.
func (e *Engine) handleRateLimited(gen int) {
	e.state = StateRateLimited
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.cfg.RateLimitCooldown, func() {
		e.mu.Lock()
		if gen != e.gen || !e.polling {
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
		e.poll(gen)
	})
	onError := e.onError
	e.mu.Unlock()

	if onError != nil {
		onError(fmt.Errorf("rate limited, cooling down for %s", e.cfg.RateLimitCooldown))
	}
}

// handleFailure runs with e.mu held and releases it.
func (e *Engine) handleFailure(gen int, err error) {
	e.retryCount++
	if e.retryCount >= e.cfg.MaxRetries {
		// Retry budget exhausted: terminal until an explicit Start.
		e.stopLocked()
		e.state = StateError
		retries := e.cfg.MaxRetries
		onError := e.onError
		e.mu.Unlock()

		if onError != nil {
			onError(fmt.Errorf("giving up after %d retries: %w", retries, err))
		}
		return
	}

	delay := e.cfg.BackoffDelay(e.retryCount)
	e.interval = delay
	e.schedule(gen, delay)
	onError := e.onError
	e.mu.Unlock()

	if onError != nil {
		onError(err)
	}
}

// schedule arms the timer for the next cycle. Caller holds e.mu.
func (e *Engine) schedule(gen int, delay time.Duration) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(delay, func() {
		e.poll(gen)
	})
}

// isRateLimitSignal classifies an error as the server telling the
// client to slow down: a 429-equivalent status or a message carrying a
// rate indicator.
func isRateLimitSignal(err error) bool {
	if client.IsRateLimited(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate")
}
