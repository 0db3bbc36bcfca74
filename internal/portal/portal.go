package portal

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/csrf"

	"github.com/aryan0dhankhar/academyportal/internal/featureflags"
	"github.com/aryan0dhankhar/academyportal/internal/security"
	"github.com/aryan0dhankhar/academyportal/internal/security/audit"
)

// Config wires a Portal
type Config struct {
	Sessions      SessionManager
	Authenticator Authenticator
	Flags         featureflags.Provider
	Policy        *security.Policy
	Audit         *audit.Logger
	Logger        *slog.Logger

	DenialPolicy string
	LoadingWait  time.Duration

	// CSRFKey enables CSRF protection of the login and logout forms. Must be 32 bytes.
	CSRFKey        []byte
	CookieSecure   bool
	TrustedOrigins []string

	// LoginLimit wraps POST /login, typically with a per-client attempt limit.
	LoginLimit func(http.Handler) http.Handler
}

// Portal owns the page-side handlers: edge gate, guards, login and pages.
type Portal struct {
	edge     *EdgeGate
	guard    *Guard
	pages    *Pages
	login    *LoginHandler
	sessions *SessionAPI
	csrf     func(http.Handler) http.Handler
	limit    func(http.Handler) http.Handler
	logger   *slog.Logger
}

// New builds a portal from cfg
func New(cfg Config) (*Portal, error) {
	if cfg.Sessions == nil || cfg.Authenticator == nil {
		return nil, fmt.Errorf("portal requires a session manager and an authenticator")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := cfg.Policy
	if policy == nil {
		policy = security.NewPolicy()
	}
	auditLog := cfg.Audit
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}

	pages, err := NewPages(logger)
	if err != nil {
		return nil, err
	}

	p := &Portal{
		edge:  NewEdgeGate(cfg.Sessions, policy, logger),
		guard: NewGuard(cfg.Sessions, cfg.Flags, policy, pages, auditLog, logger, GuardOptions{
			Denial:      cfg.DenialPolicy,
			LoadingWait: cfg.LoadingWait,
		}),
		pages:    pages,
		login:    NewLoginHandler(cfg.Authenticator, cfg.Sessions, pages, auditLog, logger),
		sessions: NewSessionAPI(cfg.Sessions, cfg.LoadingWait),
		csrf:     passthrough,
		limit:    passthrough,
		logger:   logger,
	}
	if cfg.LoginLimit != nil {
		p.limit = cfg.LoginLimit
	}

	if len(cfg.CSRFKey) > 0 {
		if len(cfg.CSRFKey) != 32 {
			return nil, fmt.Errorf("csrf key must be 32 bytes, got %d", len(cfg.CSRFKey))
		}
		p.csrf = csrfMiddleware(cfg.CSRFKey, cfg.CookieSecure, cfg.TrustedOrigins, pages, logger)
	}
	return p, nil
}

func passthrough(h http.Handler) http.Handler { return h }

func csrfMiddleware(key []byte, secure bool, trusted []string, pages *Pages, logger *slog.Logger) func(http.Handler) http.Handler {
	protect := csrf.Protect(
		key,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins(trusted),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("csrf check failed",
				slog.String("path", r.URL.Path),
				slog.String("reason", fmt.Sprint(csrf.FailureReason(r))),
			)
			http.Error(w, "Forbidden - CSRF token invalid", http.StatusForbidden)
		})),
	)
	return func(next http.Handler) http.Handler {
		h := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			h.ServeHTTP(w, r)
		})
	}
}

// Register mounts every portal route on mux.
func (p *Portal) Register(mux *http.ServeMux) {
	mux.Handle("GET /login", p.csrf(http.HandlerFunc(p.login.Show)))
	mux.Handle("POST /login", p.limit(p.csrf(http.HandlerFunc(p.login.Submit))))
	mux.Handle("POST /logout", p.csrf(http.HandlerFunc(p.login.Logout)))

	for _, route := range AreaRoutes {
		h := p.csrf(p.guard.Protect(route.Area, p.pages.Area(route)))
		mux.Handle("GET "+route.Prefix, h)
		mux.Handle("GET "+route.Prefix+"/{page}", h)
	}

	mux.Handle("GET /{$}", http.HandlerFunc(p.root))
	mux.Handle("GET /static/", p.pages.Static())

	mux.HandleFunc("GET /api/session", p.sessions.Get)
	mux.HandleFunc("POST /api/session/refresh", p.sessions.Refresh)
}

// Edge wraps the whole server with the edge gate.
func (p *Portal) Edge(next http.Handler) http.Handler {
	return p.edge.Middleware(next)
}

// root dispatches "/" to the visitor's landing area.
func (p *Portal) root(w http.ResponseWriter, r *http.Request) {
	st := p.login.sessions.Peek(r.Context(), p.login.sessions.Credential(r))
	switch {
	case st.IsAuthenticated:
		http.Redirect(w, r, LandingPath(st.User.Role), http.StatusSeeOther)
	case st.IsLoading:
		p.pages.Loading(w, r)
	default:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}
