package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"brewlog/internal/auth"
	"brewlog/internal/draft"
	"brewlog/internal/tasting"
	"brewlog/internal/taxonomy"

	"go.uber.org/zap"
)

const notPersistedWarning = "draft saved on this server only; it will be written again shortly"

type DraftHandler struct {
	Drafts  *draft.Registry
	Records Records
	Log     *zap.Logger
}

type startDraftReq struct {
	Mode string `json:"mode"`
}

// draftReq is a step payload. Choices, when sent, are run through the
// taxonomy rules and replace the flat lists. Flat lists sent on their own
// must hold taxonomy labels.
type draftReq struct {
	draft.Patch
	FlavorChoices  []taxonomy.Choice `json:"flavorChoices,omitempty"`
	SensoryChoices []taxonomy.Choice `json:"sensoryChoices,omitempty"`
}

type draftResp struct {
	Draft    draft.Draft    `json:"draft"`
	Metadata draft.Metadata `json:"metadata"`
	Warning  string         `json:"warning,omitempty"`
}

func (h *DraftHandler) Start(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req startDraftReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	mode, err := draft.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, "invalid mode", http.StatusBadRequest)
		return
	}

	s := h.Drafts.For(uid)
	s.Autosave.Discard()
	d, err := s.Start(r.Context(), mode)
	h.respondDraft(w, s, d, err, http.StatusCreated)
}

func (h *DraftHandler) Current(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	s := h.Drafts.For(uid)
	d, err := s.Load(r.Context())
	h.respondDraft(w, s, d, err, http.StatusOK)
}

func (h *DraftHandler) Save(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	p, ok := decodePatch(w, r)
	if !ok {
		return
	}

	s := h.Drafts.For(uid)
	if err := s.Autosave.Flush(r.Context()); err != nil {
		h.Log.Debug("autosave flush before save", zap.Error(err))
	}
	d, err := s.SaveStep(r.Context(), p)
	h.respondDraft(w, s, d, err, http.StatusOK)
}

func (h *DraftHandler) Next(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	p, ok := decodePatch(w, r)
	if !ok {
		return
	}

	s := h.Drafts.For(uid)
	if err := s.Autosave.Flush(r.Context()); err != nil {
		h.Log.Debug("autosave flush before next", zap.Error(err))
	}
	d, err := s.Next(r.Context(), p)
	h.respondDraft(w, s, d, err, http.StatusOK)
}

func (h *DraftHandler) Back(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	s := h.Drafts.For(uid)
	d, err := s.Back(r.Context())
	h.respondDraft(w, s, d, err, http.StatusOK)
}

// Autosave queues a partial answer; it is written once input goes quiet.
func (h *DraftHandler) Autosave(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	p, ok := decodePatch(w, r)
	if !ok {
		return
	}
	h.Drafts.For(uid).Autosave.Queue(p)
	w.WriteHeader(http.StatusAccepted)
}

func (h *DraftHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	md, err := h.Drafts.For(uid).Metadata(r.Context())
	if err != nil {
		h.draftError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

// Complete finishes the flow, stores the record and clears the draft.
// The draft survives a failed finalization so the user can retry.
func (h *DraftHandler) Complete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	s := h.Drafts.For(uid)
	ctx := r.Context()

	if err := s.Autosave.Flush(ctx); err != nil {
		h.Log.Debug("autosave flush before complete", zap.Error(err))
	}
	d, err := s.Finish(ctx)
	if err != nil && !errors.Is(err, draft.ErrNotPersisted) {
		h.draftError(w, err)
		return
	}

	res, err := h.Records.Finalize(ctx, uid, d)
	if err != nil {
		h.draftError(w, err)
		return
	}

	s.Autosave.Discard()
	if err := s.Clear(ctx); err != nil {
		h.Log.Warn("clear finalized draft", zap.Uint64("user_id", uid), zap.Error(err))
	}
	h.release(ctx, uid)
	writeJSON(w, http.StatusCreated, res)
}

func (h *DraftHandler) Discard(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	s := h.Drafts.For(uid)
	s.Autosave.Discard()
	if err := s.Clear(r.Context()); err != nil {
		h.draftError(w, err)
		return
	}
	h.release(r.Context(), uid)
	w.WriteHeader(http.StatusNoContent)
}

func (h *DraftHandler) release(ctx context.Context, uid uint64) {
	if err := h.Drafts.Release(ctx, uid); err != nil {
		h.Log.Warn("release draft session", zap.Uint64("user_id", uid), zap.Error(err))
	}
}

func (h *DraftHandler) respondDraft(w http.ResponseWriter, s *draft.Session, d draft.Draft, err error, status int) {
	var warning string
	if errors.Is(err, draft.ErrNotPersisted) {
		h.Log.Warn("draft not persisted", zap.String("draft_id", d.ID), zap.Error(err))
		warning, err = notPersistedWarning, nil
	}
	if err != nil {
		h.draftError(w, err)
		return
	}

	writeJSON(w, status, draftResp{Draft: d, Metadata: s.MetadataFor(d), Warning: warning})
}

func (h *DraftHandler) draftError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, draft.ErrDraftExpired):
		http.Error(w, "draft expired", http.StatusGone)
	case errors.Is(err, draft.ErrNoDraft):
		http.Error(w, "no draft", http.StatusNotFound)
	case errors.Is(err, draft.ErrValidation),
		errors.Is(err, tasting.ErrIncomplete),
		errors.Is(err, taxonomy.ErrUnknownDescriptor):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, draft.ErrFlowComplete):
		http.Error(w, "tasting already complete", http.StatusConflict)
	default:
		h.Log.Error("draft request failed", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func decodePatch(w http.ResponseWriter, r *http.Request) (draft.Patch, bool) {
	var req draftReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return draft.Patch{}, false
	}

	p := req.Patch
	if err := checkLabels(p); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return draft.Patch{}, false
	}
	if req.FlavorChoices != nil {
		flat, err := flatten(taxonomy.Flavors(), req.FlavorChoices)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return draft.Patch{}, false
		}
		p.Flavors = flat
	}
	if req.SensoryChoices != nil {
		flat, err := flatten(taxonomy.Sensory(), req.SensoryChoices)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return draft.Patch{}, false
		}
		p.SensoryExpressions = flat
	}
	return p, true
}

func checkLabels(p draft.Patch) error {
	if err := taxonomy.Flavors().CheckLabels(p.Flavors); err != nil {
		return err
	}
	return taxonomy.Sensory().CheckLabels(p.SensoryExpressions)
}

func flatten(t *taxonomy.Taxonomy, choices []taxonomy.Choice) ([]string, error) {
	sel, err := taxonomy.Apply(t, choices)
	if err != nil {
		return nil, err
	}
	return sel.Flatten(), nil
}
