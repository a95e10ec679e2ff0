package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"brewlog/internal/auth"
	"brewlog/internal/tasting"

	"go.uber.org/zap"
)

type RecordHandler struct {
	Records Records
	Log     *zap.Logger
}

func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	q := r.URL.Query()
	f := tasting.ListFilter{
		Mode:   strings.TrimSpace(strings.ToLower(q.Get("mode"))),
		Flavor: strings.TrimSpace(q.Get("flavor")),
		Query:  strings.TrimSpace(q.Get("q")),
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}

	recs, err := h.Records.List(r.Context(), uid, f)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if recs == nil {
		recs = []tasting.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	rec, err := h.Records.Get(r.Context(), uid, id)
	if err != nil {
		h.recordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.Records.Delete(r.Context(), uid, id); err != nil {
		h.recordError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordHandler) Share(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	unlocked, err := h.Records.Share(r.Context(), uid, id)
	if err != nil {
		h.recordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"newlyUnlocked": nonNilProgress(unlocked)})
}

func (h *RecordHandler) Stats(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	st, err := h.Records.Stats(r.Context(), uid)
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *RecordHandler) recordError(w http.ResponseWriter, err error) {
	if errors.Is(err, tasting.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.serverError(w, err)
}

func (h *RecordHandler) serverError(w http.ResponseWriter, err error) {
	h.Log.Error("record request failed", zap.Error(err))
	http.Error(w, "server error", http.StatusInternalServerError)
}
