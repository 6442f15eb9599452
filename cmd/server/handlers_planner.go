package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/dealplanner/internal/planner"
	"github.com/Simplici0/dealplanner/internal/pricing"
)

type bundleView struct {
	ID string `json:"id"`
	planner.BundleSnapshot
}

func customerView(t pricing.CustomerTerms) planner.CustomerSnapshot {
	return planner.CustomerSnapshot{
		Name:           t.Name,
		FrontEnd:       t.FrontEndPct,
		BackEnd:        t.BackEndPct,
		DistributorFee: t.DistributorFeePct,
	}
}

// decodePatch keeps numbers as json.Number so the planner sees the literal.
func decodePatch(r *http.Request) (planner.Patch, error) {
	data, err := readBody(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var patch planner.Patch
	if err := dec.Decode(&patch); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	if patch == nil {
		return nil, fmt.Errorf("patch must be a JSON object")
	}
	return patch, nil
}

func (s *server) handleGetCustomer(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, customerView(s.planner.CustomerTerms()))
}

func (s *server) handlePatchCustomer(w http.ResponseWriter, r *http.Request) {
	patch, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, customerView(s.planner.UpdateCustomerTerms(patch)))
}

func (s *server) handleResetCustomer(w http.ResponseWriter, _ *http.Request) {
	s.planner.ResetCustomerTerms()
	writeJSON(w, http.StatusOK, customerView(s.planner.CustomerTerms()))
}

func (s *server) handleListBundles(w http.ResponseWriter, _ *http.Request) {
	snap := s.planner.Snapshot()
	out := make([]bundleView, 0, len(snap.Products.AllIDs))
	for _, id := range snap.Products.AllIDs {
		out = append(out, bundleView{ID: id, BundleSnapshot: snap.Products.ByID[id]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleCreateBundle(w http.ResponseWriter, _ *http.Request) {
	id := s.planner.CreateBundle()
	b, ok := s.planner.Bundle(id)
	if !ok {
		// Removed by a concurrent request.
		writeError(w, http.StatusConflict, codeConflict, "bundle was removed")
		return
	}
	writeJSON(w, http.StatusCreated, bundleView{ID: id, BundleSnapshot: planner.EncodeBundle(b)})
}

func (s *server) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, ok := s.planner.Bundle(id)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "bundle not found")
		return
	}
	writeJSON(w, http.StatusOK, bundleView{ID: id, BundleSnapshot: planner.EncodeBundle(b)})
}

func (s *server) handleDeleteBundle(w http.ResponseWriter, r *http.Request) {
	if !s.planner.DeleteBundle(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, codeNotFound, "bundle not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handlePatchBundle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	group, ok := planner.ParseGroup(chi.URLParam(r, "group"))
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, "unknown field group")
		return
	}
	patch, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if !s.planner.UpdateBundleField(id, group, patch) {
		writeError(w, http.StatusNotFound, codeNotFound, "bundle not found")
		return
	}
	b, ok := s.planner.Bundle(id)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "bundle not found")
		return
	}
	writeJSON(w, http.StatusOK, bundleView{ID: id, BundleSnapshot: planner.EncodeBundle(b)})
}

func (s *server) handleBundleTotals(w http.ResponseWriter, r *http.Request) {
	totals, ok := s.planner.LineTotals(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "bundle not found")
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *server) handleTotals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Summary())
}

func (s *server) handleGetSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Snapshot())
}

func (s *server) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	snap, err := planner.DecodeSnapshot(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	s.planner.Restore(snap)
	writeJSON(w, http.StatusOK, s.planner.Snapshot())
}

func (s *server) handleClearDraft(w http.ResponseWriter, r *http.Request) {
	s.planner.Reset()
	if s.drafts != nil {
		if err := s.drafts.Clear(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("clear draft")
			writeError(w, http.StatusInternalServerError, codeInternal, "could not clear draft")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
