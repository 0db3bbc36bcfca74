package portal

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aryan0dhankhar/academyportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/academyportal/internal/security"
)

// CredentialReader extracts the credential a request carries.
type CredentialReader interface {
	Credential(r *http.Request) string
}

var (
	edgeBypassExact = []string{
		"/login",
		"/logout",
		"/favicon.ico",
		"/healthz",
		"/readyz",
		"/metrics",
	}
	edgeBypassPrefixes = []string{
		"/api/",
		"/static/",
		"/assets/",
		"/_next/",
	}
)

// EdgeGate runs ahead of every page handler and bounces requests that do not
// carry a structurally valid credential. It performs no role checks.
type EdgeGate struct {
	creds  CredentialReader
	policy *security.Policy
	logger *slog.Logger
}

// NewEdgeGate creates an edge gate
func NewEdgeGate(creds CredentialReader, policy *security.Policy, logger *slog.Logger) *EdgeGate {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = security.NewPolicy()
	}
	return &EdgeGate{creds: creds, policy: policy, logger: logger}
}

// Bypassed reports whether path is served without a credential.
func Bypassed(path string) bool {
	for _, p := range edgeBypassExact {
		if path == p {
			return true
		}
	}
	for _, p := range edgeBypassPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Middleware wraps next with the edge check
func (g *EdgeGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Bypassed(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := g.creds.Credential(r)
		if err := g.policy.CheckCredential(token); err != nil {
			reason := "invalid"
			if token == "" {
				reason = "missing"
			}
			metrics.ObserveEdgeRedirect(reason)
			g.logger.Debug("edge gate redirect",
				slog.String("path", r.URL.Path),
				slog.String("reason", reason),
				slog.String("error", err.Error()),
			)
			http.Redirect(w, r, LoginRedirect(r.URL), http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// LoginRedirect builds /login?from=<escaped path and query of u>.
func LoginRedirect(u *url.URL) string {
	from := u.EscapedPath()
	if from == "" {
		from = "/"
	}
	if u.RawQuery != "" {
		from += "?" + u.RawQuery
	}
	return "/login?from=" + url.QueryEscape(from)
}
