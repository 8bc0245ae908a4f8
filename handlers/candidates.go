package handlers

import (
	"net/http"

	"github.com/justbri/reelscrape/models"
)

// ListCandidates lists every candidate, or those of ?sitemap_id= only.
func (h *Handler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	sitemapID, filter, ok := optionalQueryID(w, r, "sitemap_id")
	if !ok {
		return
	}
	movies, err := h.repo.GetAllExtractedMovies(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if filter {
		filtered := movies[:0]
		for _, m := range movies {
			if m.SitemapID == sitemapID {
				filtered = append(filtered, m)
			}
		}
		movies = filtered
	}
	writeJSON(w, http.StatusOK, movies)
}

func (h *Handler) CandidateStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetExtractedMovieStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateCandidateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !models.ValidMovieStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	updated, err := h.repo.UpdateExtractedMovieStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "candidate not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	deleted, err := h.repo.DeleteExtractedMovie(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "candidate not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSitemapCandidates removes every candidate of ?sitemap_id=.
func (h *Handler) DeleteSitemapCandidates(w http.ResponseWriter, r *http.Request) {
	sitemapID, filter, ok := optionalQueryID(w, r, "sitemap_id")
	if !ok {
		return
	}
	if !filter {
		writeError(w, http.StatusBadRequest, "sitemap_id is required")
		return
	}
	n, err := h.repo.DeleteExtractedMoviesBySitemapID(r.Context(), sitemapID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// ScrapeCandidate scrapes one candidate synchronously and returns the stored
// raw movie.
func (h *Handler) ScrapeCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req scrapeRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	movie, err := h.pipeline.ScrapeCandidate(r.Context(), id, h.images(req.DownloadImages))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, movie)
}
