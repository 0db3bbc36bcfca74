package portal

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/security/middleware"
	"github.com/aryan0dhankhar/academyportal/internal/security/ratelimit"
)

var csrfField = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Logger: discardLogger()}); err == nil {
		t.Error("expected error without sessions")
	}

	h := newHarness(t, nil)
	_, err := New(Config{
		Sessions:      h.resolver,
		Authenticator: h.api,
		Logger:        discardLogger(),
		CSRFKey:       []byte("short"),
	})
	if err == nil {
		t.Error("expected error for a short csrf key")
	}
}

func TestRootDispatchesToLanding(t *testing.T) {
	h := newHarness(t, nil)

	if w := h.get("/"); w.Header().Get("Location") != "/login?from=%2F" {
		t.Errorf("anonymous root should go to login, got %q", w.Header().Get("Location"))
	}

	cookie := h.signIn(identity("u-1", "FUNCIONARIO"))
	if w := h.get("/funcionario", cookie); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w := h.get("/", cookie)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/funcionario" {
		t.Errorf("expected landing redirect, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestUnknownPathIsGated(t *testing.T) {
	h := newHarness(t, nil)
	if w := h.get("/relatorios"); w.Header().Get("Location") != "/login?from=%2Frelatorios" {
		t.Errorf("unexpected redirect %q", w.Header().Get("Location"))
	}
}

func TestLoginFormRequiresCSRFToken(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.CSRFKey = []byte(strings.Repeat("k", 32))
	})
	h.api.addAccount(identity("u-1", "ADMIN"), "s3cret")
	form := credentials("u-1@academia.com", "s3cret")

	if w := h.postForm("/login", form); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without a token, got %d", w.Code)
	}

	page := h.get("/login")
	if page.Code != http.StatusOK {
		t.Fatalf("expected login form, got %d", page.Code)
	}
	m := csrfField.FindStringSubmatch(page.Body.String())
	if m == nil {
		t.Fatal("login form carries no csrf field")
	}
	csrfCookie := findCookie(page, "_gorilla_csrf")
	if csrfCookie == nil {
		t.Fatal("expected csrf cookie")
	}

	form.Set("gorilla.csrf.Token", m[1])
	w := h.postForm("/login", form, csrfCookie)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected login to succeed with a token, got %d", w.Code)
	}
	if findCookie(w, cookieName) == nil {
		t.Error("expected credential cookie")
	}
}

func TestLogoutRequiresCSRFToken(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.CSRFKey = []byte(strings.Repeat("k", 32))
	})
	cookie := h.signIn(identity("u-1", "ADMIN"))

	req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(url.Values{}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if findCookie(w, cookieName) != nil {
		t.Error("rejected logout must not touch the credential cookie")
	}
}

func TestLoginAttemptsAreLimited(t *testing.T) {
	limiter := ratelimit.NewLimiter(100, time.Minute)
	t.Cleanup(limiter.Stop)
	h := newHarness(t, func(cfg *Config) {
		cfg.LoginLimit = middleware.LoginRateLimit(limiter, 2, time.Minute, discardLogger())
	})

	for i := 0; i < 2; i++ {
		if w := h.postForm("/login", credentials("ana@academia.com", "wrong")); w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, w.Code)
		}
	}
	w := h.postForm("/login", credentials("ana@academia.com", "wrong"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if w := h.get("/login"); w.Code != http.StatusOK {
		t.Errorf("the form itself is not limited, got %d", w.Code)
	}
}
