package http

import (
	"net/http"

	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/internal/recovery"
)

type RecoveryHandlers struct {
	Recovery *recovery.Flow
}

func (h *RecoveryHandlers) Request(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}
	o, _ := h.Recovery.RequestReset(r.Context(), in.Email)
	writeOutcome(w, r, o, nil)
}

type linkRequest struct {
	Link  string `json:"link"`
	UID   string `json:"uid"`
	Token string `json:"token"`
}

// Link binds identifiers from a full link or from the uid/token pair a UI
// router already split out.
func (h *RecoveryHandlers) Link(w http.ResponseWriter, r *http.Request) {
	var in linkRequest
	if !decode(w, r, &in) {
		return
	}
	var o flow.Outcome
	if in.Link != "" {
		o = h.Recovery.BindLink(r.Context(), in.Link)
	} else {
		o = h.Recovery.Bind(r.Context(), in.UID, in.Token)
	}
	writeOutcome(w, r, o, map[string]string{"stage": h.Recovery.Stage().String()})
}

func (h *RecoveryHandlers) Confirm(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}
	o, _ := h.Recovery.ConfirmReset(r.Context(), in.Password)
	writeOutcome(w, r, o, map[string]string{"stage": h.Recovery.Stage().String()})
}
