package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"brewlog/internal/taxonomy"

	"github.com/go-chi/chi/v5"
)

type TaxonomyHandler struct{}

type selectReq struct {
	Choices []taxonomy.Choice `json:"choices"`
	Toggle  *struct {
		Level1 string `json:"level1"`
		Level2 string `json:"level2"`
		Level3 string `json:"level3,omitempty"`
	} `json:"toggle,omitempty"`
}

type selectResp struct {
	Choices   []taxonomy.Choice `json:"choices"`
	Flattened []string          `json:"flattened"`
	Changed   bool              `json:"changed"`
}

func (h *TaxonomyHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := taxonomy.ByName(chi.URLParam(r, "name"))
	if !ok {
		http.Error(w, "unknown taxonomy", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Select applies the current choices plus one optional toggle and returns
// the resulting selection, so clients share the server's rules.
func (h *TaxonomyHandler) Select(w http.ResponseWriter, r *http.Request) {
	t, ok := taxonomy.ByName(chi.URLParam(r, "name"))
	if !ok {
		http.Error(w, "unknown taxonomy", http.StatusNotFound)
		return
	}

	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	sel, err := taxonomy.Apply(t, req.Choices)
	if err != nil {
		selectError(w, err)
		return
	}

	var changed bool
	if tg := req.Toggle; tg != nil {
		if tg.Level3 == "" {
			changed, err = sel.ToggleLevel2(tg.Level1, tg.Level2)
		} else {
			changed, err = sel.ToggleLevel3(tg.Level1, tg.Level2, tg.Level3)
		}
		if err != nil {
			selectError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, selectResp{Choices: sel.Choices(), Flattened: sel.Flatten(), Changed: changed})
}

func selectError(w http.ResponseWriter, err error) {
	if errors.Is(err, taxonomy.ErrUnknownDescriptor) {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	http.Error(w, "server error", http.StatusInternalServerError)
}
