package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/dealplanner/internal/store"
)

type saveDealRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Notes string `json:"notes" validate:"max=4000"`
}

func (s *server) handleListDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := s.store.ListDeals(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.log.Error().Err(err).Msg("list deals")
		writeError(w, http.StatusInternalServerError, codeInternal, "could not list deals")
		return
	}
	if deals == nil {
		deals = []store.DealListItem{}
	}
	writeJSON(w, http.StatusOK, deals)
}

func (s *server) handleSaveDeal(w http.ResponseWriter, r *http.Request) {
	var req saveDealRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, validationMessage(err))
		return
	}

	snap, totals := s.planner.SnapshotAndSummary()
	deal, err := s.store.SaveDeal(r.Context(), store.NewDeal{
		Title:    req.Title,
		Notes:    req.Notes,
		Snapshot: snap,
		Totals:   totals,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("save deal")
		writeError(w, http.StatusInternalServerError, codeInternal, "could not save deal")
		return
	}
	s.log.Info().Str("deal_id", deal.ID).Int("bundles", deal.BundleCount).Msg("deal saved")
	writeJSON(w, http.StatusCreated, deal)
}

func (s *server) handleGetDeal(w http.ResponseWriter, r *http.Request) {
	deal, ok := s.loadDeal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

func (s *server) handleLoadDeal(w http.ResponseWriter, r *http.Request) {
	deal, ok := s.loadDeal(w, r)
	if !ok {
		return
	}
	s.planner.Restore(deal.Snapshot)
	writeJSON(w, http.StatusOK, s.planner.Snapshot())
}

func (s *server) handleDeleteDeal(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteDeal(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrDealNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "deal not found")
		return
	case err != nil:
		s.log.Error().Err(err).Msg("delete deal")
		writeError(w, http.StatusInternalServerError, codeInternal, "could not delete deal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) loadDeal(w http.ResponseWriter, r *http.Request) (store.Deal, bool) {
	deal, err := s.store.GetDeal(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrDealNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "deal not found")
		return store.Deal{}, false
	case err != nil:
		s.log.Error().Err(err).Msg("get deal")
		writeError(w, http.StatusInternalServerError, codeInternal, "could not load deal")
		return store.Deal{}, false
	}
	return deal, true
}
