package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/academyportal/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/academyportal/internal/reliability/retry"
	"github.com/aryan0dhankhar/academyportal/pkg/cache"
)

// Fetcher resolves the identity behind a credential (GET /auth/me).
type Fetcher interface {
	Me(ctx context.Context, token string) (*domain.Identity, error)
}

// State is what a consumer of the resolver observes for one credential.
type State struct {
	User            *domain.Identity
	IsLoading       bool
	Err             error
	IsAuthenticated bool
}

// Options tunes the resolver. Zero values fall back to DefaultOptions.
type Options struct {
	// Freshness is how long a resolved identity is reused without refetching.
	Freshness time.Duration
	// ErrorTTL is how long a failed fetch is remembered before the next attempt.
	ErrorTTL time.Duration
	// FetchTimeout bounds one detached identity fetch including its retry.
	FetchTimeout time.Duration
	// SessionTTL is the lifetime of a session record written by Establish.
	SessionTTL   time.Duration
	RetryBackoff time.Duration
	Breaker      *circuitbreaker.CircuitBreaker
	Now          func() time.Time
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		Freshness:    5 * time.Minute,
		ErrorTTL:     10 * time.Second,
		FetchTimeout: 10 * time.Second,
		SessionTTL:   24 * time.Hour,
		RetryBackoff: 200 * time.Millisecond,
	}
}

type fetchFailure struct {
	err error
}

// Resolver is the single owner of the credential: the session store, the
// credential cookie and the identity cache all go through it.
type Resolver struct {
	fetcher Fetcher
	store   Store
	cookie  Cookie
	cache   *cache.Cache
	group   singleflight.Group
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.Config
	opts    Options
	logger  *slog.Logger
}

// NewResolver creates a new session resolver
func NewResolver(fetcher Fetcher, store Store, cookie Cookie, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultOptions()
	if opts.Freshness <= 0 {
		opts.Freshness = defaults.Freshness
	}
	if opts.ErrorTTL < 0 {
		opts.ErrorTTL = 0
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaults.FetchTimeout
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaults.SessionTTL
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaults.RetryBackoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Breaker == nil {
		opts.Breaker = circuitbreaker.NewCircuitBreaker(5, 1, 30*time.Second)
		opts.Breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
			logger.Warn("identity api circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})
	}
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = opts.SessionTTL
	}

	return &Resolver{
		fetcher: fetcher,
		store:   store,
		cookie:  cookie,
		cache:   cache.NewWithClock(opts.Now),
		breaker: opts.Breaker,
		retry:   retry.Once(opts.RetryBackoff, retryable),
		opts:    opts,
		logger:  logger,
	}
}

// retryable excludes definitive answers: a 401 will not change on a second try.
func retryable(err error) bool {
	return !errors.Is(err, domain.ErrUnauthenticated) && !errors.Is(err, circuitbreaker.ErrOpen)
}

func identityKey(token string) string {
	return "identity:" + KeyFor(token)
}

// Credential returns the token carried by the request's credential cookie.
func (r *Resolver) Credential(req *http.Request) string {
	return r.cookie.Read(req)
}

// Resolve returns the identity state for token, fetching it at most once per
// freshness window. Concurrent callers share the in-flight fetch. If ctx ends
// before the shared fetch completes the caller gets a loading state; the fetch
// keeps running detached and fills the cache for the next caller. Once the
// window has passed the last known identity is served while a background
// fetch replaces it.
func (r *Resolver) Resolve(ctx context.Context, token string) State {
	if token == "" {
		return State{Err: ErrNoCredential}
	}
	if err := r.checkStore(ctx, token); err != nil {
		return State{Err: err}
	}

	key := identityKey(token)
	if st, ok := r.cached(ctx, key, token); ok {
		return st
	}

	ch := r.group.DoChan(key, r.fetchFunc(ctx, key, token))
	select {
	case res := <-ch:
		if res.Err != nil {
			return State{Err: res.Err}
		}
		return State{User: res.Val.(*domain.Identity), IsAuthenticated: true}
	case <-ctx.Done():
		return State{IsLoading: true}
	}
}

// Peek never blocks on the identity service. Without a cached answer it
// starts (or joins) a background fetch and reports loading.
func (r *Resolver) Peek(ctx context.Context, token string) State {
	if token == "" {
		return State{Err: ErrNoCredential}
	}
	if err := r.checkStore(ctx, token); err != nil {
		return State{Err: err}
	}

	key := identityKey(token)
	if st, ok := r.cached(ctx, key, token); ok {
		return st
	}
	r.group.DoChan(key, r.fetchFunc(ctx, key, token))
	return State{IsLoading: true}
}

// Refetch drops whatever is cached for token and resolves again.
func (r *Resolver) Refetch(ctx context.Context, token string) State {
	key := identityKey(token)
	r.cache.Delete(key)
	r.group.Forget(key)
	return r.Resolve(ctx, token)
}

// Establish persists a freshly issued credential: the store record first, the
// cookie only once the record exists. A failed save writes nothing to w.
func (r *Resolver) Establish(ctx context.Context, w http.ResponseWriter, token string, user *domain.Identity) error {
	if token == "" {
		return ErrNoCredential
	}
	rec := Record{Token: token, Identity: user, CreatedAt: r.opts.Now()}
	if err := r.store.Save(ctx, rec, r.opts.SessionTTL); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	r.cache.Delete(identityKey(token))
	r.cookie.Set(w, token)
	return nil
}

// Logout clears the store record, every cached entry for the credential and
// the cookie. The cookie is always expired even if the store call fails.
func (r *Resolver) Logout(ctx context.Context, w http.ResponseWriter, token string) error {
	var err error
	if token != "" {
		if cerr := r.store.Clear(ctx, token); cerr != nil {
			err = fmt.Errorf("failed to clear session: %w", cerr)
		}
		key := identityKey(token)
		r.cache.Delete(key)
		r.group.Forget(key)
	}
	r.cookie.Clear(w)
	return err
}

// retention is how long a resolved identity is kept for stale serving. It never
// drops below the freshness window.
func (r *Resolver) retention() time.Duration {
	if r.opts.SessionTTL > r.opts.Freshness {
		return r.opts.SessionTTL
	}
	return r.opts.Freshness
}

// Purge drops expired identity cache entries and returns how many were removed.
func (r *Resolver) Purge() int {
	return r.cache.Purge()
}

// checkStore enforces that a cookie credential is backed by a store record.
func (r *Resolver) checkStore(ctx context.Context, token string) error {
	if _, err := r.store.Load(ctx, token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrNoSession
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	return nil
}

// cached reports what the identity cache knows about key. A stale identity is
// returned as authenticated and triggers (or joins) a background refetch.
func (r *Resolver) cached(ctx context.Context, key, token string) (State, bool) {
	v, stale, ok := r.cache.GetStale(key, r.opts.Freshness)
	if !ok {
		metrics.ObserveIdentityCache("miss")
		return State{}, false
	}
	switch val := v.(type) {
	case *domain.Identity:
		if stale {
			metrics.ObserveIdentityCache("stale")
			r.group.DoChan(key, r.fetchFunc(ctx, key, token))
		} else {
			metrics.ObserveIdentityCache("hit")
		}
		return State{User: val, IsAuthenticated: true}, true
	case fetchFailure:
		metrics.ObserveIdentityCache("failure")
		return State{Err: val.err}, true
	default:
		return State{}, false
	}
}

func (r *Resolver) fetchFunc(ctx context.Context, key, token string) func() (interface{}, error) {
	parent := context.WithoutCancel(ctx)
	return func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(parent, r.opts.FetchTimeout)
		defer cancel()

		start := time.Now()
		identity, err := retry.Do(fctx, r.retry, r.logger, "identity fetch",
			func(ctx context.Context) (*domain.Identity, error) {
				var id *domain.Identity
				err := r.breaker.Execute(func() error {
					var ferr error
					id, ferr = r.fetcher.Me(ctx, token)
					return ferr
				}, retryable)
				return id, err
			})
		if err == nil && (identity == nil || !identity.IsActive) {
			identity, err = nil, ErrInactive
		}

		if err != nil {
			r.logger.Info("identity fetch failed", slog.String("error", err.Error()))
			metrics.ObserveIdentityFetch(resultLabel(err), time.Since(start))
			if r.opts.ErrorTTL > 0 {
				r.cache.Set(key, fetchFailure{err: err}, r.opts.ErrorTTL)
			}
			return nil, err
		}

		if merr := r.store.Mirror(fctx, token, identity); merr != nil {
			if errors.Is(merr, domain.ErrNotFound) {
				// logged out while the fetch was in flight
				metrics.ObserveIdentityFetch("discarded", time.Since(start))
				return nil, ErrNoSession
			}
			r.logger.Warn("failed to mirror identity into session",
				slog.String("user_id", identity.ID),
				slog.String("error", merr.Error()),
			)
		}
		r.cache.Set(key, identity, r.retention())
		metrics.ObserveIdentityFetch("success", time.Since(start))
		return identity, nil
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, circuitbreaker.ErrOpen):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
