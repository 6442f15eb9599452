package main

import (
	"net/http"

	"github.com/Simplici0/dealplanner/internal/export"
)

func (s *server) handleCatalogPrograms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.catalog.Programs()))
}

func (s *server) handleCatalogRAMs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.catalog.RAMs(r.URL.Query().Get("program"))))
}

func (s *server) handleCatalogROMs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, nonNil(s.catalog.ROMs(q.Get("program"), q.Get("ram"))))
}

func (s *server) handleCatalogCustomers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.catalog.CustomerNames()))
}

func (s *server) handleExport(w http.ResponseWriter, _ *http.Request) {
	data, err := export.Workbook(s.planner.Snapshot())
	if err != nil {
		s.log.Error().Err(err).Msg("export workbook")
		writeError(w, http.StatusInternalServerError, codeInternal, "could not build workbook")
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="dealplanner_export.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
