package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "SESSION_FRESHNESS", "DENIAL_POLICY", "CREDENTIAL_COOKIE", "ENVIRONMENT", "COOKIE_SECURE", "API_BASE_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.ServerPort)
	}
	if cfg.SessionFreshness != 5*time.Minute {
		t.Errorf("expected 5m freshness, got %v", cfg.SessionFreshness)
	}
	if cfg.DenialPolicy != DenialRedirect {
		t.Errorf("expected redirect policy, got %q", cfg.DenialPolicy)
	}
	if cfg.CredentialCookie != "token" {
		t.Errorf("expected cookie name token, got %q", cfg.CredentialCookie)
	}
	if cfg.CookieSecure {
		t.Errorf("cookies should not be secure by default in development")
	}
	if cfg.APIBaseURL != "" {
		t.Errorf("expected in-process identity api by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_FRESHNESS", "90s")
	t.Setenv("DENIAL_POLICY", "INLINE")
	t.Setenv("API_BASE_URL", "http://identity:8080/api/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.SessionFreshness != 90*time.Second {
		t.Errorf("expected 90s, got %v", cfg.SessionFreshness)
	}
	if cfg.DenialPolicy != DenialInline {
		t.Errorf("expected inline policy, got %q", cfg.DenialPolicy)
	}
	if cfg.APIBaseURL != "http://identity:8080/api" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.APIBaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.CookieSecure {
		t.Errorf("expected secure cookies")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"SERVER_PORT":       "eighty",
		"SESSION_FRESHNESS": "soon",
		"DENIAL_POLICY":     "teleport",
		"COOKIE_SECURE":     "maybe",
		"TOKEN_TTL":         "-1h",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing JWT_SECRET to fail in production")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CSRF_KEY", "short")
	if _, err := Load(); err == nil {
		t.Fatal("expected short CSRF_KEY to fail in production")
	}

	t.Setenv("CSRF_KEY", "0123456789abcdef0123456789abcdef")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.CookieSecure {
		t.Fatal("expected secure cookies by default in production")
	}
}
