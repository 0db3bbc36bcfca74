package portal

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/security"
	"github.com/aryan0dhankhar/academyportal/internal/security/audit"
	"github.com/aryan0dhankhar/academyportal/internal/session"
	"github.com/aryan0dhankhar/academyportal/pkg/config"
)

var allowedRoles = map[security.Area][]string{
	security.AreaSuperAdmin: {"SUPER_ADMIN"},
	security.AreaAdmin:      {"SUPER_ADMIN", "ADMIN"},
	security.AreaStaff:      {"ADMIN", "FUNCIONARIO"},
	security.AreaRecords:    {"SUPER_ADMIN", "ADMIN", "FUNCIONARIO"},
	security.AreaStudent:    {"ALUNO"},
	security.AreaGuardian:   {"RESPONSAVEL"},
}

func isAllowed(area security.Area, role string) bool {
	for _, r := range allowedRoles[area] {
		if r == role {
			return true
		}
	}
	return false
}

func TestDecide(t *testing.T) {
	admin := identity("u-1", "admin")
	policy := security.NewPolicy()
	tests := []struct {
		name  string
		state session.State
		area  security.Area
		want  Decision
	}{
		{"loading", session.State{IsLoading: true}, security.AreaAdmin, DecisionLoading},
		{"loading wins over stale user", session.State{IsLoading: true, User: admin}, security.AreaAdmin, DecisionLoading},
		{"no identity", session.State{Err: domain.ErrUnauthenticated}, security.AreaAdmin, DecisionDenied},
		{"authenticated without user", session.State{IsAuthenticated: true}, security.AreaAdmin, DecisionDenied},
		{"lowercase role allowed", session.State{User: admin, IsAuthenticated: true}, security.AreaAdmin, DecisionAuthorized},
		{"role outside area", session.State{User: admin, IsAuthenticated: true}, security.AreaStudent, DecisionDenied},
		{"alias", session.State{User: identity("u-2", "ALUNO_FUTEBOL"), IsAuthenticated: true}, security.AreaStudent, DecisionAuthorized},
		{"unknown role", session.State{User: identity("u-3", "PROFESSOR"), IsAuthenticated: true}, security.AreaRecords, DecisionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(policy, tt.state, tt.area); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

type recordingHandler struct {
	called bool
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	w.WriteHeader(http.StatusOK)
}

func newTestGuard(t *testing.T, h *harness, opts GuardOptions) *Guard {
	t.Helper()
	pages, err := NewPages(discardLogger())
	if err != nil {
		t.Fatalf("NewPages failed: %v", err)
	}
	return NewGuard(h.resolver, staticFlags{}, nil, pages, nil, discardLogger(), opts)
}

func guardedRequest(cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/area", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestGuardRoleMatrix(t *testing.T) {
	roles := []string{"PROFESSOR"}
	for _, r := range domain.Roles {
		roles = append(roles, string(r))
	}
	for _, route := range AreaRoutes {
		for _, role := range roles {
			t.Run(string(route.Area)+"/"+role, func(t *testing.T) {
				h := newHarness(t, nil)
				guard := newTestGuard(t, h, GuardOptions{})
				cookie := h.signIn(identity("u-"+strings.ToLower(role), role))

				next := &recordingHandler{}
				w := httptest.NewRecorder()
				guard.Protect(route.Area, next).ServeHTTP(w, guardedRequest(cookie))

				if isAllowed(route.Area, role) {
					if !next.called || w.Code != http.StatusOK {
						t.Fatalf("expected %s to enter %s, got %d", role, route.Area, w.Code)
					}
					return
				}
				if next.called {
					t.Fatalf("children rendered for %s in %s", role, route.Area)
				}
				if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
					t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
				}
			})
		}
	}
}

func TestGuardRedirectsWithoutSession(t *testing.T) {
	h := newHarness(t, nil)
	guard := newTestGuard(t, h, GuardOptions{Denial: config.DenialInline})

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"cookie without store record", &http.Cookie{Name: cookieName, Value: h.api.issue(t, identity("u-1", "ADMIN"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recordingHandler{}
			w := httptest.NewRecorder()
			guard.Protect(security.AreaAdmin, next).ServeHTTP(w, guardedRequest(tt.cookie))

			if next.called {
				t.Fatal("children rendered without a session")
			}
			if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
				t.Errorf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
			}
		})
	}
}

func TestGuardInlineDenialNamesRole(t *testing.T) {
	h := newHarness(t, nil)
	guard := newTestGuard(t, h, GuardOptions{Denial: config.DenialInline})
	cookie := h.signIn(identity("u-1", "ALUNO"))

	next := &recordingHandler{}
	w := httptest.NewRecorder()
	guard.Protect(security.AreaAdmin, next).ServeHTTP(w, guardedRequest(cookie))

	if next.called {
		t.Fatal("children rendered for a denied role")
	}
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<strong>ALUNO</strong>") {
		t.Errorf("denial panel should name the role, got %q", w.Body.String())
	}
}

func TestGuardServesLoadingPageWhileResolving(t *testing.T) {
	h := newHarness(t, nil)
	guard := newTestGuard(t, h, GuardOptions{LoadingWait: 20 * time.Millisecond})
	cookie := h.signIn(identity("u-1", "ADMIN"))

	gate := make(chan struct{})
	h.api.mu.Lock()
	h.api.gate = gate
	h.api.mu.Unlock()

	next := &recordingHandler{}
	w := httptest.NewRecorder()
	guard.Protect(security.AreaAdmin, next).ServeHTTP(w, guardedRequest(cookie))

	if next.called {
		t.Fatal("children rendered before the identity resolved")
	}
	if w.Code != http.StatusOK || w.Header().Get("Location") != "" {
		t.Fatalf("expected loading page without redirect, got %d %q", w.Code, w.Header().Get("Location"))
	}
	body := w.Body.String()
	if !strings.Contains(body, "Carregando") || !strings.Contains(body, `http-equiv="refresh"`) {
		t.Errorf("unexpected loading page: %q", body)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("guarded responses must not be cached")
	}

	close(gate)
	waitFor(t, func() bool {
		st := h.resolver.Peek(guardedRequest(cookie).Context(), cookie.Value)
		return st.IsAuthenticated
	})

	next = &recordingHandler{}
	w = httptest.NewRecorder()
	guard.Protect(security.AreaAdmin, next).ServeHTTP(w, guardedRequest(cookie))
	if !next.called {
		t.Fatalf("expected children after the identity resolved, got %d", w.Code)
	}
	if h.api.MeCalls() != 1 {
		t.Errorf("expected the detached fetch to be reused, got %d calls", h.api.MeCalls())
	}
}

func TestGuardReusesIdentityWithinFreshnessWindow(t *testing.T) {
	h := newHarness(t, nil)
	cookie := h.signIn(identity("u-1", "ADMIN"))

	for i := 0; i < 2; i++ {
		if w := h.get("/dashboard", cookie); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
		h.clock.Advance(2 * time.Minute)
	}
	if h.api.MeCalls() != 1 {
		t.Fatalf("expected one identity fetch inside the window, got %d", h.api.MeCalls())
	}

	h.clock.Advance(2 * time.Minute)
	if w := h.get("/dashboard", cookie); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after window, got %d", w.Code)
	}
	waitFor(t, func() bool { return h.api.MeCalls() == 2 })
}

func TestGuardServesLastKnownIdentityWhileRefetching(t *testing.T) {
	h := newHarness(t, nil)
	cookie := h.signIn(identity("u-1", "ADMIN"))
	if w := h.get("/dashboard", cookie); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	h.api.gate = make(chan struct{})
	defer close(h.api.gate)
	h.clock.Advance(6 * time.Minute)

	w := h.get("/dashboard", cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("expected the stale identity to be served, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "arregando") {
		t.Fatalf("expected the page, got the loading screen")
	}
	waitFor(t, func() bool { return h.api.MeCalls() == 2 })
}

func TestGuardAttachesChrome(t *testing.T) {
	h := newHarness(t, nil)
	guard := newTestGuard(t, h, GuardOptions{})
	cookie := h.signIn(identity("u-1", "funcionario"))

	var chrome *Chrome
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chrome = ChromeFrom(r.Context())
	})
	guard.Protect(security.AreaStaff, next).ServeHTTP(httptest.NewRecorder(), guardedRequest(cookie))

	if chrome == nil {
		t.Fatal("expected chrome in the request context")
	}
	if chrome.Role != domain.RoleFuncionario {
		t.Errorf("expected normalized role, got %q", chrome.Role)
	}
	if len(chrome.Nav) != 2 || chrome.Nav[0].Path != "/funcionario" || chrome.Nav[1].Path != "/aluno" {
		t.Errorf("unexpected navigation: %+v", chrome.Nav)
	}
}

func TestDecisionString(t *testing.T) {
	if DecisionLoading.String() != "loading" || DecisionDenied.String() != "denied" || Decision(9).String() != "unknown" {
		t.Error("unexpected decision labels")
	}
}

func TestGuardDenialIsLoggedOnce(t *testing.T) {
	h := newHarness(t, nil)
	cookie := h.signIn(identity("u-1", "ALUNO"))

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	pages, err := NewPages(discardLogger())
	if err != nil {
		t.Fatalf("NewPages failed: %v", err)
	}
	guard := NewGuard(h.resolver, staticFlags{}, security.NewPolicy(), pages, audit.NewLogger(logger), logger, GuardOptions{})

	next := &recordingHandler{}
	w := httptest.NewRecorder()
	guard.Protect(security.AreaAdmin, next).ServeHTTP(w, guardedRequest(cookie))
	if next.called || w.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect without calling next, got %d called=%v", w.Code, next.called)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log entry for the denial, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"action":"access_denied"`) || !strings.Contains(lines[0], `"resource_id":"admin"`) {
		t.Errorf("unexpected denial entry: %s", lines[0])
	}
}
