package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/client"
	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/academyportal/internal/security/audit"
	"github.com/aryan0dhankhar/academyportal/internal/security/auth"
	"github.com/aryan0dhankhar/academyportal/internal/session"
)

// Authenticator exchanges email and password for a credential. Both the
// in-process auth service and the HTTP identity client implement it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)
}

// SessionManager is the full session resolver surface the portal uses.
type SessionManager interface {
	SessionSource
	Peek(ctx context.Context, token string) session.State
	Refetch(ctx context.Context, token string) session.State
	Establish(ctx context.Context, w http.ResponseWriter, token string, user *domain.Identity) error
	Logout(ctx context.Context, w http.ResponseWriter, token string) error
}

const (
	msgInvalidCredentials = "Email ou senha inválidos"
	msgUnavailable        = "Serviço de autenticação indisponível. Tente novamente em instantes."
	msgSessionFailed      = "Não foi possível iniciar a sessão. Tente novamente."
)

// LoginHandler serves /login and /logout
type LoginHandler struct {
	auth     Authenticator
	sessions SessionManager
	pages    *Pages
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewLoginHandler creates a login handler
func NewLoginHandler(authenticator Authenticator, sessions SessionManager, pages *Pages, auditLog *audit.Logger, logger *slog.Logger) *LoginHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &LoginHandler{
		auth:     authenticator,
		sessions: sessions,
		pages:    pages,
		audit:    auditLog,
		logger:   logger,
	}
}

// Show handles GET /login. A visitor whose session is already resolved is
// sent straight to their landing area.
func (h *LoginHandler) Show(w http.ResponseWriter, r *http.Request) {
	if token := h.sessions.Credential(r); token != "" {
		if st := h.sessions.Peek(r.Context(), token); st.IsAuthenticated {
			http.Redirect(w, r, LandingPath(st.User.Role), http.StatusSeeOther)
			return
		}
	}
	h.pages.Login(w, r, http.StatusOK, "", "")
}

// Submit handles POST /login. Nothing is written to the session store or
// the cookie unless the identity API accepted the credentials.
func (h *LoginHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.pages.Login(w, r, http.StatusBadRequest, "", "Requisição inválida")
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	res, err := h.auth.Login(r.Context(), email, password)
	if err == nil && (res == nil || res.User == nil || res.Token == "") {
		err = errors.New("identity api returned an incomplete login result")
	}
	if err != nil {
		h.loginFailed(w, r, email, err)
		return
	}

	if err := h.sessions.Establish(r.Context(), w, res.Token, res.User); err != nil {
		metrics.ObserveLogin("error")
		h.logger.Error("failed to establish session",
			slog.String("user_id", res.User.ID),
			slog.String("error", err.Error()),
		)
		h.pages.Login(w, r, http.StatusInternalServerError, email, msgSessionFailed)
		return
	}

	metrics.ObserveLogin("success")
	h.audit.LogLogin(r.Context(), res.User.TenantID, res.User.ID, email, "success")
	http.Redirect(w, r, LandingPath(res.User.Role), http.StatusSeeOther)
}

func (h *LoginHandler) loginFailed(w http.ResponseWriter, r *http.Request, email string, err error) {
	if client.IsUnavailable(err) {
		metrics.ObserveLogin("error")
		h.logger.Warn("login unavailable",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		h.pages.Login(w, r, http.StatusBadGateway, email, msgUnavailable)
		return
	}

	metrics.ObserveLogin("rejected")
	h.audit.LogLogin(r.Context(), "", "", email, "failure")

	message := msgInvalidCredentials
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		message = apiErr.Message
	}
	h.pages.Login(w, r, http.StatusUnauthorized, email, message)
}

// Logout handles POST /logout: every copy of the credential is cleared before
// the redirect to /login is written.
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.sessions.Credential(r)

	var tenantID, userID string
	if claims, err := auth.InspectToken(token, time.Now()); err == nil {
		tenantID, userID = claims.TenantID, claims.UserID
	}

	if err := h.sessions.Logout(r.Context(), w, token); err != nil {
		h.logger.Error("logout did not clear the session store",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	if token != "" {
		h.audit.LogLogout(r.Context(), tenantID, userID)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
