package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/academyportal/internal/security/audit"
	"github.com/aryan0dhankhar/academyportal/internal/security/middleware"
)

// Authenticator is the identity service as seen by the HTTP layer
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)
	Me(ctx context.Context, token string) (*domain.Identity, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService Authenticator
	audit       *audit.Logger
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService Authenticator, auditLog *audit.Logger, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}

	return &AuthHandler{
		authService: authService,
		audit:       auditLog,
		logger:      logger,
	}
}

// AuthLoginRequest represents login request
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, domain.LoginResult{Success: false, Message: message})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse request body
	var req AuthLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode login request",
			slog.String("error", err.Error()),
		)
		writeFailure(w, http.StatusBadRequest, "Requisição inválida")
		return
	}

	// Authenticate user
	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			metrics.ObserveLogin("invalid")
			writeFailure(w, http.StatusBadRequest, "Email e senha são obrigatórios")
		case errors.Is(err, domain.ErrInvalidCredentials):
			metrics.ObserveLogin("rejected")
			h.audit.LogLogin(r.Context(), "", "", req.Email, "failure")
			writeFailure(w, http.StatusUnauthorized, "Email ou senha inválidos")
		default:
			metrics.ObserveLogin("error")
			h.logger.Error("login failed",
				slog.String("email", req.Email),
				slog.String("error", err.Error()),
			)
			writeFailure(w, http.StatusInternalServerError, "Erro interno ao autenticar")
		}
		return
	}

	metrics.ObserveLogin("success")
	h.audit.LogLogin(r.Context(), result.User.TenantID, result.User.ID, req.Email, "success")
	writeJSON(w, http.StatusOK, result)
}

// Me handles GET /api/auth/me. Expects JWTMiddleware in front of it.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := middleware.GetTokenFromContext(r.Context())
	identity, err := h.authService.Me(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			writeFailure(w, http.StatusUnauthorized, "Sessão inválida")
			return
		}
		h.logger.Error("failed to resolve identity", slog.String("error", err.Error()))
		writeFailure(w, http.StatusInternalServerError, "Erro interno")
		return
	}

	writeJSON(w, http.StatusOK, identity)
}
