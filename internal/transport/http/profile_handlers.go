package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/internal/profile"
	"github.com/steva-school/parent-portal/internal/session"
)

type ProfileHandlers struct {
	Sessions *session.Manager
	Profiles *profile.Service
	Nav      flow.Navigator
}

// parentID prefers the URL and falls back to the signed-in user.
func (h *ProfileHandlers) parentID(ctx context.Context, r *http.Request) (string, error) {
	if id := strings.TrimSpace(chi.URLParam(r, "parentId")); id != "" {
		return id, nil
	}
	return h.Sessions.ParentID(ctx)
}

func (h *ProfileHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := h.parentID(r.Context(), r)
	if err != nil {
		writeError(w, r, err, "", flow.ScreenLogin)
		return
	}
	v := profile.NewView(h.Profiles, h.Nav, id)
	o := v.Load(r.Context())
	writeOutcome(w, r, o, v.Snapshot())
}

func (h *ProfileHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := h.parentID(r.Context(), r)
	if err != nil {
		writeError(w, r, err, "", flow.ScreenLogin)
		return
	}
	var p profile.Patch
	if !decode(w, r, &p) {
		return
	}

	v := profile.NewView(h.Profiles, h.Nav, id)
	o, _ := v.Edit(r.Context(), p)
	writeOutcome(w, r, o, v.Snapshot())
}
