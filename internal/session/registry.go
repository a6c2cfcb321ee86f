package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pharmamart/internal/cartsync"
	"pharmamart/internal/logging"
	"pharmamart/internal/service/auth"
)

const (
	defaultIdleTimeout = 30 * time.Minute
	defaultInitTimeout = 10 * time.Second
)

type entry struct {
	sess     *Session
	ready    chan struct{}
	lastSeen atomic.Int64
}

func (e *entry) touch(now time.Time) { e.lastSeen.Store(now.UnixNano()) }

// Option configures a Registry.
type Option func(*Registry)

// WithIdleTimeout sets how long a session may go unused before it is
// disposed. Zero or less keeps sessions until sign-out.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) { r.idle = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry owns the live sessions, one per user id.
type Registry struct {
	profiles    ProfileSource
	store       cartsync.Store
	catalog     cartsync.Catalog
	logger      *zap.Logger
	idle        time.Duration
	initTimeout time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewRegistry(profiles ProfileSource, store cartsync.Store, catalog cartsync.Catalog, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		profiles:    profiles,
		store:       store,
		catalog:     catalog,
		logger:      logging.OrNop(logger).Named("session"),
		idle:        defaultIdleTimeout,
		initTimeout: defaultInitTimeout,
		now:         time.Now,
		sessions:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the session for id, creating and initialising it on first
// use. Concurrent callers for a new user wait for the single Init. A
// profile or cart that failed to load earlier is retried here.
func (r *Registry) Get(ctx context.Context, id auth.Identity) (*Session, error) {
	now := r.now()
	r.mu.RLock()
	e, ok := r.sessions[id.UserID]
	r.mu.RUnlock()
	if ok && r.expired(e, now) {
		r.evict(id.UserID, e)
		ok = false
	}
	if !ok {
		r.mu.Lock()
		e, ok = r.sessions[id.UserID]
		if !ok {
			cart := cartsync.New(r.store, r.catalog, r.logger)
			e = &entry{sess: New(id, r.profiles, cart, r.logger), ready: make(chan struct{})}
			e.touch(now)
			r.sessions[id.UserID] = e
		}
		r.mu.Unlock()

		if !ok {
			// Init outlives the request so a client abort cannot leave the
			// session half loaded.
			initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.initTimeout)
			err := e.sess.Init(initCtx)
			cancel()
			if err != nil {
				r.logger.Warn("session started degraded", zap.String("user_id", id.UserID), zap.Error(err))
			}
			close(e.ready)
			return e.sess, nil
		}
	}
	e.touch(now)

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if _, loaded := e.sess.Profile(); !loaded {
		if err := e.sess.RefreshProfile(ctx); err != nil {
			r.logger.Debug("profile still pending", zap.String("user_id", id.UserID), zap.Error(err))
		}
	}
	if err := e.sess.Cart.EnsureLoaded(ctx); err != nil {
		r.logger.Warn("cart still not loaded", zap.String("user_id", id.UserID), zap.Error(err))
	}
	return e.sess, nil
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[userID]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

// RefreshProfile reloads the profile of a live session, if any.
func (r *Registry) RefreshProfile(ctx context.Context, userID string) {
	s, ok := r.Lookup(userID)
	if !ok {
		return
	}
	if err := s.RefreshProfile(ctx); err != nil {
		r.logger.Warn("profile refresh failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Dispose removes and disposes the user's session.
func (r *Registry) Dispose(userID string) {
	r.mu.Lock()
	e, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if ok {
		e.sess.Dispose()
		r.logger.Info("session disposed", zap.String("user_id", userID))
	}
}

// HandleAuthEvent reloads the cart of a live session on sign-in and
// disposes the session on sign-out.
func (r *Registry) HandleAuthEvent(ev auth.Event) {
	switch ev.Kind {
	case auth.SignedIn:
		s, ok := r.Lookup(ev.UserID)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.initTimeout)
		defer cancel()
		if err := s.ReloadCart(ctx); err != nil {
			r.logger.Warn("cart reload on sign-in failed", zap.String("user_id", ev.UserID), zap.Error(err))
		}
	case auth.SignedOut:
		r.Dispose(ev.UserID)
	}
}

// Sweep disposes every session idle for longer than the idle timeout and
// returns how many it removed.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	now := r.now()
	var stale []*entry
	r.mu.Lock()
	for userID, e := range r.sessions {
		if r.expired(e, now) {
			delete(r.sessions, userID)
			stale = append(stale, e)
		}
	}
	r.mu.Unlock()
	for _, e := range stale {
		e.sess.Dispose()
	}
	if len(stale) > 0 {
		r.logger.Info("idle sessions disposed", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close disposes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range sessions {
		e.sess.Dispose()
	}
}

func (r *Registry) expired(e *entry, now time.Time) bool {
	if r.idle <= 0 {
		return false
	}
	return now.Sub(time.Unix(0, e.lastSeen.Load())) > r.idle
}

// evict drops e if it is still the registered session for userID.
func (r *Registry) evict(userID string, e *entry) {
	r.mu.Lock()
	current, ok := r.sessions[userID]
	if ok && current == e {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()
	if ok && current == e {
		e.sess.Dispose()
		r.logger.Info("idle session disposed", zap.String("user_id", userID))
	}
}
