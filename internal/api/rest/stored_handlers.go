package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fortuna/collegebaseball/internal/store"
)

var errNoArchive = errors.New("database is not configured")

// storedParams resolves the school and season every stored route needs.
func (h *Handler) storedParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	if h.archive == nil {
		respondError(w, http.StatusServiceUnavailable, "Unavailable", errNoArchive)
		return 0, 0, false
	}
	season, err := requiredInt(r, "season")
	if err != nil {
		h.fail(w, err)
		return 0, 0, false
	}
	school, err := h.scraper.Bundle().School(schoolRef(r))
	if err != nil {
		h.fail(w, err)
		return 0, 0, false
	}
	return school.SchoolID, season, true
}

// ListStoredTables lists the saved table keys for a team-season.
func (h *Handler) ListStoredTables(w http.ResponseWriter, r *http.Request) {
	schoolID, season, ok := h.storedParams(w, r)
	if !ok {
		return
	}
	keys, err := h.archive.ListKeys(r.Context(), schoolID, season)
	if err != nil {
		h.fail(w, err)
		return
	}
	if keys == nil {
		keys = []store.TableKey{}
	}
	respondJSON(w, http.StatusOK, keys)
}

// GetStoredTable loads one saved table.
func (h *Handler) GetStoredTable(w http.ResponseWriter, r *http.Request) {
	schoolID, season, ok := h.storedParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	key := store.TableKey{
		Kind:     mux.Vars(r)["kind"],
		Category: q.Get("category"),
		Season:   season,
		SchoolID: schoolID,
		Split:    q.Get("split"),
	}
	if raw := q.Get("subject"); raw != "" {
		subject, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.fail(w, badRequest("subject must be a stats_player_seq"))
			return
		}
		key.Subject = subject
	}

	stored, err := h.archive.LoadTable(r.Context(), key)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stored)
}

// GetStoredRoster returns the saved roster rows.
func (h *Handler) GetStoredRoster(w http.ResponseWriter, r *http.Request) {
	schoolID, season, ok := h.storedParams(w, r)
	if !ok {
		return
	}
	rows, err := h.archive.ListRoster(r.Context(), schoolID, season)
	if err != nil {
		h.fail(w, err)
		return
	}
	if rows == nil {
		rows = []store.RosterRow{}
	}
	respondJSON(w, http.StatusOK, rows)
}

// GetStoredResults returns the saved results.
func (h *Handler) GetStoredResults(w http.ResponseWriter, r *http.Request) {
	schoolID, season, ok := h.storedParams(w, r)
	if !ok {
		return
	}
	rows, err := h.archive.ListResults(r.Context(), schoolID, season)
	if err != nil {
		h.fail(w, err)
		return
	}
	if rows == nil {
		rows = []store.ResultRow{}
	}
	respondJSON(w, http.StatusOK, rows)
}
