package http

import (
	"net/http"

	"github.com/steva-school/parent-portal/internal/verification"
)

type VerifyHandlers struct {
	Verification *verification.Flow
}

type verifyRequest struct {
	StudentID string `json:"studentId"`
}

func (h *VerifyHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if !decode(w, r, &in) {
		return
	}
	res, _ := h.Verification.SubmitStudentID(r.Context(), in.StudentID)
	writeOutcome(w, r, res.Outcome, map[string]string{"state": res.State.String()})
}
