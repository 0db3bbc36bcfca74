package portal

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/featureflags"
	"github.com/aryan0dhankhar/academyportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/academyportal/internal/security"
	"github.com/aryan0dhankhar/academyportal/internal/security/audit"
	"github.com/aryan0dhankhar/academyportal/internal/session"
	"github.com/aryan0dhankhar/academyportal/pkg/config"
)

// Decision is the route guard's verdict for one request.
type Decision int

const (
	DecisionLoading Decision = iota
	DecisionAuthorized
	DecisionDenied
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionAuthorized:
		return "authorized"
	case DecisionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Decide maps a session state to a guard decision for area under policy. No
// decision is made while the state is still loading.
func Decide(policy *security.Policy, st session.State, area security.Area) Decision {
	if st.IsLoading {
		return DecisionLoading
	}
	if !st.IsAuthenticated || st.User == nil {
		return DecisionDenied
	}
	if !policy.Allows(area, st.User.Role) {
		return DecisionDenied
	}
	return DecisionAuthorized
}

// SessionSource is the part of the session resolver the guard reads.
type SessionSource interface {
	CredentialReader
	Resolve(ctx context.Context, token string) session.State
}

// Guard wraps area handlers with the authorization decision.
type Guard struct {
	sessions SessionSource
	flags    featureflags.Provider
	policy   *security.Policy
	pages    *Pages
	audit    *audit.Logger
	logger   *slog.Logger
	denial   string
	wait     time.Duration
}

// GuardOptions configures a Guard
type GuardOptions struct {
	// Denial is config.DenialRedirect (default) or config.DenialInline.
	Denial string
	// LoadingWait bounds how long a request waits on the identity fetch
	// before the loading page is served instead.
	LoadingWait time.Duration
}

// NewGuard creates a guard
func NewGuard(sessions SessionSource, flags featureflags.Provider, policy *security.Policy, pages *Pages, auditLog *audit.Logger, logger *slog.Logger, opts GuardOptions) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if flags == nil {
		flags = featureflags.EnvProvider{}
	}
	if policy == nil {
		policy = security.NewPolicy()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	if opts.Denial != config.DenialInline {
		opts.Denial = config.DenialRedirect
	}
	if opts.LoadingWait <= 0 {
		opts.LoadingWait = 2 * time.Second
	}
	return &Guard{
		sessions: sessions,
		flags:    flags,
		policy:   policy,
		pages:    pages,
		audit:    auditLog,
		logger:   logger,
		denial:   opts.Denial,
		wait:     opts.LoadingWait,
	}
}

// Protect serves next only to identities allowed in area.
func (g *Guard) Protect(area security.Area, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		ctx, cancel := context.WithTimeout(r.Context(), g.wait)
		st := g.sessions.Resolve(ctx, g.sessions.Credential(r))
		cancel()

		decision := Decide(g.policy, st, area)
		metrics.ObserveGuardDecision(string(area), decision.String())

		switch decision {
		case DecisionLoading:
			g.pages.Loading(w, r)
		case DecisionDenied:
			g.deny(w, r, area, st)
		case DecisionAuthorized:
			next.ServeHTTP(w, r.WithContext(g.chrome(r.Context(), st.User)))
		}
	})
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request, area security.Area, st session.State) {
	if st.User == nil {
		if st.Err != nil {
			g.logger.Debug("guard redirect to login",
				slog.String("area", string(area)),
				slog.String("error", st.Err.Error()),
			)
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	err := g.policy.ValidateAreaAccess(area, st.User)
	reason := "role not allowed"
	if err != nil {
		reason = err.Error()
	}
	g.audit.LogDenied(r.Context(), st.User.TenantID, st.User.ID, string(area), reason)

	if g.denial == config.DenialInline {
		g.pages.Denied(w, r, st.User.Role)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (g *Guard) chrome(ctx context.Context, user *domain.Identity) context.Context {
	cfg, err := g.flags.ForTenant(ctx, user.TenantID)
	if err != nil {
		g.logger.Warn("failed to load tenant config, using defaults",
			slog.String("tenant_id", user.TenantID),
			slog.String("error", err.Error()),
		)
		cfg = featureflags.TenantConfig{}
	}
	role, _ := user.NormalizedRole()
	ctx = featureflags.WithConfig(ctx, cfg)
	return WithChrome(ctx, &Chrome{
		User:   user,
		Role:   role,
		Nav:    Navigation(user.Role, cfg),
		Config: cfg,
	})
}
