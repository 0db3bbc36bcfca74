package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/session"
)

type sessionResponse struct {
	IsLoading       bool             `json:"isLoading"`
	IsAuthenticated bool             `json:"isAuthenticated"`
	User            *domain.Identity `json:"user"`
	Error           string           `json:"error,omitempty"`
	Landing         string           `json:"landing,omitempty"`
}

// SessionAPI exposes the resolver state of the cookie credential as JSON.
type SessionAPI struct {
	sessions SessionManager
	wait     time.Duration
}

// NewSessionAPI creates the session endpoints. wait bounds a refresh.
func NewSessionAPI(sessions SessionManager, wait time.Duration) *SessionAPI {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &SessionAPI{sessions: sessions, wait: wait}
}

// Get handles GET /api/session. It never blocks on the identity service.
func (a *SessionAPI) Get(w http.ResponseWriter, r *http.Request) {
	st := a.sessions.Peek(r.Context(), a.sessions.Credential(r))
	writeState(w, st)
}

// Refresh handles POST /api/session/refresh
func (a *SessionAPI) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.wait)
	defer cancel()
	st := a.sessions.Refetch(ctx, a.sessions.Credential(r))
	writeState(w, st)
}

func writeState(w http.ResponseWriter, st session.State) {
	resp := sessionResponse{
		IsLoading:       st.IsLoading,
		IsAuthenticated: st.IsAuthenticated,
		User:            st.User,
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	if st.IsAuthenticated && st.User != nil {
		resp.Landing = LandingPath(st.User.Role)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(resp)
}
