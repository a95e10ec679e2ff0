package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"brewlog/internal/achievement"
	"brewlog/internal/draft"
	"brewlog/internal/tasting"

	"github.com/go-chi/chi/v5"
)

// Records is the record store the handlers need. *tasting.Service implements it.
type Records interface {
	Finalize(ctx context.Context, userID uint64, d draft.Draft) (tasting.FinalizeResult, error)
	List(ctx context.Context, userID uint64, f tasting.ListFilter) ([]tasting.Record, error)
	Get(ctx context.Context, userID, recordID uint64) (tasting.Record, error)
	Delete(ctx context.Context, userID, recordID uint64) error
	Share(ctx context.Context, userID, recordID uint64) ([]achievement.Progress, error)
	Stats(ctx context.Context, userID uint64) (achievement.Stats, error)
	Progress(ctx context.Context, userID uint64) ([]achievement.Progress, error)
	TakeNotifications(ctx context.Context, userID uint64) ([]tasting.UserAchievement, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func idParam(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
