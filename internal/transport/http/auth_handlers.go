package http

import (
	"net/http"

	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/internal/registration"
	"github.com/steva-school/parent-portal/internal/session"
)

type AuthHandlers struct {
	Sessions     *session.Manager
	Registration *registration.Flow
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var in session.Credentials
	if !decode(w, r, &in) {
		return
	}
	o := h.Sessions.SignIn(r.Context(), in)
	writeOutcome(w, r, o, map[string]bool{"authenticated": o.OK()})
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	o := h.Sessions.SignOut(r.Context())
	writeOutcome(w, r, o, map[string]bool{"authenticated": false})
}

func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Sessions.Refresh(r.Context()); err != nil {
		writeError(w, r, err, "", flow.ScreenLogin)
		return
	}
	writeOutcome(w, r, flow.Outcome{}, map[string]bool{"refreshed": true})
}

type sessionInfo struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
	ExpiresAt     int64  `json:"expiresAt,omitempty"`
}

// Session reports whether a session exists. Tokens never leave the gateway.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	var out sessionInfo
	if _, ok := h.Sessions.Current(r.Context()); ok {
		out.Authenticated = true
		if c, ok := h.Sessions.Claims(r.Context()); ok {
			out.UserID = c.UserID
			if !c.ExpiresAt.IsZero() {
				out.ExpiresAt = c.ExpiresAt.Unix()
			}
		}
	}
	writeOutcome(w, r, flow.Outcome{}, out)
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registration.Request
	if !decode(w, r, &in) {
		return
	}
	o, _ := h.Registration.Register(r.Context(), in)
	writeOutcome(w, r, o, nil)
}
