package portal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/featureflags"
	"github.com/aryan0dhankhar/academyportal/internal/security/auth"
	"github.com/aryan0dhankhar/academyportal/internal/session"
)

const cookieName = "token"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// fakeIdentityAPI answers both login and me from an in-memory account list.
type fakeIdentityAPI struct {
	mu        sync.Mutex
	tokens    *auth.TokenManager
	passwords map[string]string
	accounts  map[string]*domain.Identity // by email
	byToken   map[string]*domain.Identity
	meCalls   int
	loginErr  error
	gate      chan struct{}
}

func newFakeIdentityAPI() *fakeIdentityAPI {
	return &fakeIdentityAPI{
		tokens:    auth.NewTokenManager("test-secret", "academyportal"),
		passwords: make(map[string]string),
		accounts:  make(map[string]*domain.Identity),
		byToken:   make(map[string]*domain.Identity),
	}
}

func (f *fakeIdentityAPI) addAccount(id *domain.Identity, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[id.Email] = id
	f.passwords[id.Email] = password
}

// issue mints a credential for id without going through Login.
func (f *fakeIdentityAPI) issue(t *testing.T, id *domain.Identity) string {
	t.Helper()
	token, err := f.tokens.GenerateToken(id.TenantID, id.ID, id.Email, id.Role, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	f.mu.Lock()
	f.byToken[token] = id
	f.mu.Unlock()
	return token
}

func (f *fakeIdentityAPI) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	f.mu.Lock()
	loginErr := f.loginErr
	account, ok := f.accounts[email]
	match := f.passwords[email] == password
	f.mu.Unlock()

	if loginErr != nil {
		return nil, loginErr
	}
	if !ok || !match {
		return nil, domain.ErrInvalidCredentials
	}
	token, err := f.tokens.GenerateToken(account.TenantID, account.ID, account.Email, account.Role, time.Hour)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.byToken[token] = account
	f.mu.Unlock()
	return &domain.LoginResult{Success: true, Token: token, User: account}, nil
}

func (f *fakeIdentityAPI) Me(ctx context.Context, token string) (*domain.Identity, error) {
	f.mu.Lock()
	f.meCalls++
	gate := f.gate
	id, ok := f.byToken[token]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return id, nil
}

func (f *fakeIdentityAPI) MeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meCalls
}

type staticFlags map[string]featureflags.TenantConfig

func (s staticFlags) ForTenant(_ context.Context, tenantID string) (featureflags.TenantConfig, error) {
	return s[tenantID], nil
}

func identity(id, role string) *domain.Identity {
	return &domain.Identity{
		ID:       id,
		Name:     "User " + id,
		Email:    strings.ToLower(id) + "@academia.com",
		Role:     role,
		TenantID: "t-1",
		IsActive: true,
	}
}

type harness struct {
	t        *testing.T
	clock    *fakeClock
	api      *fakeIdentityAPI
	store    *session.MemoryStore
	resolver *session.Resolver
	handler  http.Handler
}

// newHarness builds the portal behind its edge gate the way cmd/server mounts it.
func newHarness(t *testing.T, configure func(*Config)) *harness {
	t.Helper()
	clock := newFakeClock()
	api := newFakeIdentityAPI()
	store := session.NewMemoryStore(clock.Now)
	resolver := session.NewResolver(api, store, session.Cookie{Name: cookieName}, session.Options{
		Now:          clock.Now,
		RetryBackoff: time.Millisecond,
	}, discardLogger())

	cfg := Config{
		Sessions:      resolver,
		Authenticator: api,
		Flags:         staticFlags{},
		Logger:        discardLogger(),
	}
	if configure != nil {
		configure(&cfg)
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	mux := http.NewServeMux()
	p.Register(mux)

	return &harness{
		t:        t,
		clock:    clock,
		api:      api,
		store:    store,
		resolver: resolver,
		handler:  p.Edge(mux),
	}
}

// signIn stores a session for id and returns its credential cookie.
func (h *harness) signIn(id *domain.Identity) *http.Cookie {
	h.t.Helper()
	token := h.api.issue(h.t, id)
	if err := h.store.Save(context.Background(), session.Record{Token: token}, 24*time.Hour); err != nil {
		h.t.Fatalf("Save failed: %v", err)
	}
	return &http.Cookie{Name: cookieName, Value: token}
}

func (h *harness) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func (h *harness) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
