package rest

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fortuna/collegebaseball/internal/ingest/boydsworld"
	"github.com/fortuna/collegebaseball/internal/reconciliation"
	"github.com/fortuna/collegebaseball/internal/reference"
)

var errNoResultsSource = errors.New("boydsworld results are not configured")

// GetBoydsworldResults returns boydsworld.com scores for first..last.
func (h *Handler) GetBoydsworldResults(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		respondError(w, http.StatusServiceUnavailable, "Unavailable", errNoResultsSource)
		return
	}
	first, err := requiredInt(r, "first")
	if err != nil {
		h.fail(w, err)
		return
	}
	last, err := intParam(r, "last", first)
	if err != nil {
		h.fail(w, err)
		return
	}
	if last < first {
		h.fail(w, badRequest("last must not precede first"))
		return
	}

	games, err := h.results.Games(r.Context(), schoolRef(r), first, last)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, boydsworld.Table(games))
}

// GetReconciliation cross-checks a season's results against boydsworld.
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		respondError(w, http.StatusServiceUnavailable, "Unavailable", errNoResultsSource)
		return
	}
	season, err := requiredInt(r, "season")
	if err != nil {
		h.fail(w, err)
		return
	}
	name := mux.Vars(r)["school"]
	school, err := h.scraper.Bundle().School(reference.ParseSchool(name))
	if err != nil {
		h.fail(w, err)
		return
	}

	ncaaResults, err := h.teamResults(r.Context(), name, season)
	if err != nil {
		h.fail(w, err)
		return
	}
	bdGames, err := h.results.Games(r.Context(), reference.ByID(school.SchoolID), season, season)
	if err != nil {
		h.fail(w, err)
		return
	}

	report := h.reconciler.Reconcile(school.SchoolID, season,
		reconciliation.FromResults(ncaaResults), reconciliation.FromBoydsworld(bdGames))
	respondJSON(w, http.StatusOK, report)
}
