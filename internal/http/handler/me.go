package handler

import (
	"net/http"

	"brewlog/internal/auth"
	"brewlog/internal/draft"
)

type MeHandler struct {
	Drafts *draft.Registry
}

// Me reports the caller and, when one is resumable, their open draft.
func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	out := map[string]any{"userId": uid}
	if md, err := h.Drafts.For(uid).Metadata(r.Context()); err == nil {
		out["draft"] = md
	}
	writeJSON(w, http.StatusOK, out)
}
