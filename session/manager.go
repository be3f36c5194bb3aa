// Package session maintains the pool of authenticated platform sessions,
// one per bearer token, with reference counting, idle eviction, failure
// quarantine and a background cleaner.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/m4xw311/telegram-mcp/config"
	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/logger"
	"github.com/m4xw311/telegram-mcp/telegram"
	"github.com/m4xw311/telegram-mcp/telemetry"
)

const connectAttempts = 2

// Options configures the manager.
type Options struct {
	IdleTTL         time.Duration
	CleanupInterval time.Duration
	ConnectTimeout  time.Duration
	// MaxSessions is a soft limit: when exceeded, the cleaner evicts the
	// oldest idle sessions first, but acquisition never fails on it.
	MaxSessions int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.IdleTTL == 0 {
		out.IdleTTL = 30 * time.Minute
	}
	if out.CleanupInterval == 0 {
		out.CleanupInterval = 60 * time.Second
	}
	if out.ConnectTimeout == 0 {
		out.ConnectTimeout = 30 * time.Second
	}
	if out.MaxSessions == 0 {
		out.MaxSessions = 32
	}
	return out
}

// Session is one authenticated platform connection owned by the manager.
// All fields are guarded by the manager's mutex.
type Session struct {
	token    string
	client   telegram.Client
	lastUsed time.Time
	refCount int
	failed   bool
}

// Handle is what Acquire hands out: access to the client plus the receipt
// needed to release or condemn the session.
type Handle struct {
	session *Session
	once    sync.Once
}

// Client returns the platform client. Valid until Release.
func (h *Handle) Client() telegram.Client {
	return h.session.client
}

// Token returns the bearer token this session is bound to.
func (h *Handle) Token() string {
	return h.session.token
}

// Manager owns every platform client in the process.
type Manager struct {
	opts      Options
	appCfg    *config.Config
	connector telegram.Connector

	mu       sync.Mutex
	sessions map[string]*Session
	// draining holds failed sessions that were replaced while still
	// referenced; the cleaner disconnects them once their refs run out.
	draining []*Session
	// connectLocks serialises connection establishment per token so a
	// thundering herd builds exactly one client. Entries are dropped when
	// the token's session is evicted; the rare connect racing a recycled
	// lock is resolved at insert time in Acquire.
	connectLocks map[string]*sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewManager creates a manager. Call Start to run the background cleaner.
func NewManager(appCfg *config.Config, connector telegram.Connector, opts Options) *Manager {
	return &Manager{
		opts:         opts.withDefaults(),
		appCfg:       appCfg,
		connector:    connector,
		sessions:     make(map[string]*Session),
		connectLocks: make(map[string]*sync.Mutex),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Acquire returns a healthy session for the token, creating and
// authenticating one on demand. The empty token selects the
// process-default session. Every successful Acquire must be paired with
// Release on all exit paths.
func (m *Manager) Acquire(ctx context.Context, token string) (*Handle, error) {
	if h := m.tryAcquireExisting(token); h != nil {
		return h, nil
	}

	// Serialise connects per token; the map lock is never held across the
	// network round trips below.
	lock := m.connectLock(token)
	lock.Lock()
	defer lock.Unlock()

	// A queued acquirer observes the entry the winner created.
	if h := m.tryAcquireExisting(token); h != nil {
		return h, nil
	}

	client, err := m.connect(ctx, token)
	if err != nil {
		// No entry is left behind on failure.
		return nil, err
	}

	m.mu.Lock()
	// A racing connect can slip in when the sweep recycled this token's
	// connect lock; the first insert wins and the loser's client is torn
	// down rather than overwriting the map entry.
	if existing, ok := m.sessions[token]; ok && !existing.failed {
		existing.refCount++
		existing.lastUsed = time.Now()
		m.mu.Unlock()
		m.disconnectAsync(&Session{token: token, client: client})
		return &Handle{session: existing}, nil
	}
	s := &Session{token: token, client: client, lastUsed: time.Now(), refCount: 1}
	m.sessions[token] = s
	total := len(m.sessions)
	m.mu.Unlock()
	telemetry.SetSessions(total)

	if total > m.opts.MaxSessions {
		logger.Warnw("session count exceeds soft limit", "sessions", total, "max_sessions", m.opts.MaxSessions)
	}
	logger.Debugw("session created", "default", token == "", "sessions", total)
	return &Handle{session: s}, nil
}

// tryAcquireExisting hands out the mapped session when it is healthy. A
// failed entry is detached (deleted, or moved to draining while still
// referenced) so the caller proceeds to create a replacement.
func (m *Manager) tryAcquireExisting(token string) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil
	}
	if s.failed {
		delete(m.sessions, token)
		if s.refCount > 0 {
			m.draining = append(m.draining, s)
		} else {
			m.disconnectAsync(s)
		}
		return nil
	}
	s.refCount++
	s.lastUsed = time.Now()
	return &Handle{session: s}
}

// connect builds, connects and authorises a new client. Connection refusals
// are retried once before surfacing Unavailable; an unauthenticated session
// surfaces Unauthorized and the client is torn down.
func (m *Manager) connect(ctx context.Context, token string) (telegram.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	client, err := m.connector(ctx, m.appCfg, token)
	if err != nil {
		return nil, errors.WrapKind(errors.KindUnavailable, err, "could not create platform client")
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, client.Connect(ctx)
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(connectAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Debugw("retrying platform connect", "error", err, "wait", wait)
		}),
	)
	if err != nil {
		return nil, errors.WrapKind(errors.KindUnavailable, err, "could not connect to platform")
	}

	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.WrapKind(errors.KindUnavailable, err, "could not verify authorization")
	}
	if !authorized {
		_ = client.Disconnect(ctx)
		return nil, errors.NewKind(errors.KindUnauthorized, "session not authorized")
	}
	return client, nil
}

func (m *Manager) connectLock(token string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.connectLocks[token]
	if !ok {
		lock = &sync.Mutex{}
		m.connectLocks[token] = lock
	}
	return lock
}

// Release returns a handle. Safe to call more than once; only the first
// call decrements.
func (m *Manager) Release(h *Handle) {
	if h == nil {
		return
	}
	h.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if h.session.refCount > 0 {
			h.session.refCount--
		}
	})
}

// MarkFailed condemns the session behind the handle. It keeps serving
// current holders; the cleaner tears it down once the refs run out.
func (m *Manager) MarkFailed(h *Handle) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h.session.failed = true
}

// Start runs the background cleaner until Stop or ctx cancellation.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.opts.CleanupInterval)
		defer ticker.Stop()
		logger.Debugw("session cleaner started", "interval", m.opts.CleanupInterval)
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop halts the cleaner. It ceases within one sweep interval.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.done
}

// sweep removes failed sessions with no holders and healthy sessions idle
// beyond the TTL, then enforces the soft session limit oldest-idle first.
// Disconnects are best effort and never halt the sweep.
func (m *Manager) sweep() {
	now := time.Now()
	var victims []*Session

	m.mu.Lock()
	remaining := m.draining[:0]
	for _, s := range m.draining {
		if s.refCount == 0 {
			victims = append(victims, s)
		} else {
			remaining = append(remaining, s)
		}
	}
	m.draining = remaining

	for token, s := range m.sessions {
		switch {
		case s.failed && s.refCount == 0:
			delete(m.sessions, token)
			delete(m.connectLocks, token)
			victims = append(victims, s)
		case !s.failed && s.refCount == 0 && now.Sub(s.lastUsed) > m.opts.IdleTTL:
			delete(m.sessions, token)
			delete(m.connectLocks, token)
			victims = append(victims, s)
		}
	}

	if over := len(m.sessions) - m.opts.MaxSessions; over > 0 {
		var idle []*Session
		for _, s := range m.sessions {
			if s.refCount == 0 {
				idle = append(idle, s)
			}
		}
		for ; over > 0 && len(idle) > 0; over-- {
			oldest := 0
			for i, s := range idle {
				if s.lastUsed.Before(idle[oldest].lastUsed) {
					oldest = i
				}
			}
			s := idle[oldest]
			idle = append(idle[:oldest], idle[oldest+1:]...)
			delete(m.sessions, s.token)
			delete(m.connectLocks, s.token)
			victims = append(victims, s)
		}
	}
	total := len(m.sessions)
	m.mu.Unlock()
	telemetry.SetSessions(total)

	for _, s := range victims {
		m.disconnect(s)
	}
	if len(victims) > 0 {
		logger.Debugw("session sweep complete", "evicted", len(victims), "sessions", total)
	}
}

// Cleanup synchronously disconnects every session. Used at shutdown.
func (m *Manager) Cleanup(ctx context.Context) {
	m.mu.Lock()
	victims := make([]*Session, 0, len(m.sessions)+len(m.draining))
	for token, s := range m.sessions {
		delete(m.sessions, token)
		victims = append(victims, s)
	}
	victims = append(victims, m.draining...)
	m.draining = nil
	m.connectLocks = make(map[string]*sync.Mutex)
	m.mu.Unlock()
	telemetry.SetSessions(0)

	for _, s := range victims {
		if err := s.client.Disconnect(ctx); err != nil {
			logger.Warnw("error disconnecting session", "error", err)
		}
	}
}

// Stats describes the pool for the health endpoint.
type Stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Failed int `json:"failed"`
}

// Stats returns a snapshot of the pool.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{Total: len(m.sessions)}
	for _, s := range m.sessions {
		if s.refCount > 0 {
			st.Active++
		}
		if s.failed {
			st.Failed++
		}
	}
	return st
}

func (m *Manager) disconnect(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		logger.Warnw("error disconnecting session", "error", err)
	}
}

func (m *Manager) disconnectAsync(s *Session) {
	go m.disconnect(s)
}
