package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"phishguard/report"
	"phishguard/scoring"
	"phishguard/store"
)

type pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

type historyPage struct {
	Scans      []store.Record `json:"scans"`
	Pagination pagination     `json:"pagination"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := store.Page{Limit: atoi(q.Get("limit")), Page: atoi(q.Get("page"))}.Normalize()
	f := store.Filter{
		Label: q.Get("result"),
		Kind:  scoring.Flow(q.Get("kind")),
	}

	scans, total, err := s.store.Find(r.Context(), f, page)
	if err != nil {
		sendError(w, "Error retrieving scan history", err)
		return
	}
	pages := (total + page.Limit - 1) / page.Limit
	sendOK(w, "Scan history retrieved successfully", historyPage{
		Scans:      scans,
		Pagination: pagination{Total: total, Page: page.Page, Limit: page.Limit, Pages: pages},
	})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Scan not found", err)
		return
	}
	sendOK(w, "Scan retrieved successfully", rec)
}

func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		sendError(w, "Scan not found", err)
		return
	}
	sendOK(w, "Scan deleted successfully", nil)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.DeleteAll(r.Context())
	if err != nil {
		sendError(w, "Error clearing history", err)
		return
	}
	sendOK(w, fmt.Sprintf("Deleted %d scans", n), map[string]int64{"deletedCount": n})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	top := atoi(r.URL.Query().Get("top"))
	st, err := s.store.Stats(r.Context(), top)
	if err != nil {
		sendError(w, "Error retrieving statistics", err)
		return
	}
	sendOK(w, "Statistics retrieved successfully", st)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Scan not found", err)
		return
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, rec); err != nil {
		sendError(w, "Error rendering report", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="phishguard-%s.pdf"`, rec.ID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// atoi returns 0 for anything that is not a number.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
