package handlers

import (
	"net/http"
	"strings"

	"github.com/justbri/reelscrape/models"
)

func (h *Handler) ListRawMovies(w http.ResponseWriter, r *http.Request) {
	sitemapID, filter, ok := optionalQueryID(w, r, "sitemap_id")
	if !ok {
		return
	}
	var (
		movies []models.RawMovie
		err    error
	)
	if filter {
		movies, err = h.repo.GetRawMoviesBySitemap(r.Context(), sitemapID)
	} else {
		movies, err = h.repo.GetAllRawMovies(r.Context())
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movies)
}

func (h *Handler) RawMovieStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetRawMovieStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetRawMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	movie, err := h.repo.GetRawMovieByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

func (h *Handler) UpdateRawMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var upd models.RawMovieUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		writeError(w, http.StatusBadRequest, "title cannot be empty")
		return
	}
	if upd.Status != nil && !models.ValidMovieStatus(*upd.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	movie, err := h.repo.UpdateRawMovie(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

func (h *Handler) DeleteRawMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	deleted, err := h.repo.DeleteRawMovie(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "movie not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) BulkDeleteRawMovies(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}
	n, err := h.repo.BulkDeleteRawMovies(r.Context(), req.IDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// DeleteSitemapRawMovies removes every raw movie scraped from ?sitemap_id=.
func (h *Handler) DeleteSitemapRawMovies(w http.ResponseWriter, r *http.Request) {
	sitemapID, filter, ok := optionalQueryID(w, r, "sitemap_id")
	if !ok {
		return
	}
	if !filter {
		writeError(w, http.StatusBadRequest, "sitemap_id is required")
		return
	}
	n, err := h.repo.DeleteRawMoviesBySitemapID(r.Context(), sitemapID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
