package handler

import (
	"net/http"
	"strconv"
	"time"

	"brewlog/internal/achievement"
	"brewlog/internal/auth"

	"go.uber.org/zap"
)

const defaultNextUp = 3

type AchievementHandler struct {
	Records Records
	Catalog achievement.Catalog
	Log     *zap.Logger
}

type achievementDTO struct {
	achievement.Progress
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type notificationDTO struct {
	AchievementID string             `json:"achievementId"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	Icon          string             `json:"icon"`
	Rarity        achievement.Rarity `json:"rarity"`
	Points        int                `json:"points"`
	UnlockedAt    time.Time          `json:"unlockedAt"`
}

// List returns the grid (unlocked first) with a summary.
func (h *AchievementHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	ps, err := h.Records.Progress(r.Context(), uid)
	if err != nil {
		h.serverError(w, err)
		return
	}

	if cat := r.URL.Query().Get("category"); cat != "" {
		filtered := ps[:0:0]
		for _, p := range ps {
			if string(p.Category) == cat {
				filtered = append(filtered, p)
			}
		}
		ps = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":      achievement.Summarize(ps),
		"achievements": h.describe(achievement.Grid(ps)),
	})
}

func (h *AchievementHandler) Next(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	n := defaultNextUp
	if v := r.URL.Query().Get("n"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 && k <= 20 {
			n = k
		}
	}

	ps, err := h.Records.Progress(r.Context(), uid)
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.describe(achievement.NextUp(ps, n)))
}

// Notifications drains unlocks the user has not seen yet.
func (h *AchievementHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	rows, err := h.Records.TakeNotifications(r.Context(), uid)
	if err != nil {
		h.serverError(w, err)
		return
	}

	out := make([]notificationDTO, 0, len(rows))
	for _, ua := range rows {
		n := notificationDTO{AchievementID: ua.AchievementID, UnlockedAt: ua.UnlockedAt}
		if def, ok := h.Catalog.Find(ua.AchievementID); ok {
			n.Name, n.Description, n.Icon = def.Name, def.Description, def.Icon
			n.Rarity, n.Points = def.Rarity, def.Points
		}
		out = append(out, n)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AchievementHandler) describe(ps []achievement.Progress) []achievementDTO {
	out := make([]achievementDTO, 0, len(ps))
	for _, p := range ps {
		dto := achievementDTO{Progress: p}
		if def, ok := h.Catalog.Find(p.AchievementID); ok {
			dto.Name, dto.Description, dto.Icon = def.Name, def.Description, def.Icon
		}
		out = append(out, dto)
	}
	return out
}

func (h *AchievementHandler) serverError(w http.ResponseWriter, err error) {
	h.Log.Error("achievement request failed", zap.Error(err))
	http.Error(w, "server error", http.StatusInternalServerError)
}

func nonNilProgress(ps []achievement.Progress) []achievement.Progress {
	if ps == nil {
		return []achievement.Progress{}
	}
	return ps
}
