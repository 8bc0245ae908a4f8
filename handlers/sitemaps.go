package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/justbri/reelscrape/middleware"
	"github.com/justbri/reelscrape/models"
)

func validSitemapURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (h *Handler) ListSitemaps(w http.ResponseWriter, r *http.Request) {
	sitemaps, err := h.repo.GetAllSitemaps(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sitemaps)
}

// CreateSitemap registers a sitemap and resolves it right away. A sitemap
// that cannot be resolved is still created; the response says why.
func (h *Handler) CreateSitemap(w http.ResponseWriter, r *http.Request) {
	var in models.SitemapInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.SiteName = strings.TrimSpace(in.SiteName)
	in.URL = strings.TrimSpace(in.URL)

	if in.SiteName == "" || in.URL == "" {
		writeError(w, http.StatusBadRequest, "site_name and url are required")
		return
	}
	if !validSitemapURL(in.URL) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	if in.Status != "" && !models.ValidSitemapStatus(in.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		in.CreatedBy = &user.ID
	}

	result, err := h.pipeline.RegisterSitemap(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) GetSitemap(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	sitemap, err := h.repo.GetSitemapByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sitemap)
}

// UpdateSitemap applies a partial update. Changing the URL discards the
// sitemap's candidates and raw movies and resolves the new URL.
func (h *Handler) UpdateSitemap(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var upd models.SitemapUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	if upd.Empty() {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if upd.SiteName != nil && strings.TrimSpace(*upd.SiteName) == "" {
		writeError(w, http.StatusBadRequest, "site_name cannot be empty")
		return
	}
	if upd.URL != nil && !validSitemapURL(strings.TrimSpace(*upd.URL)) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	if upd.Status != nil && !models.ValidSitemapStatus(*upd.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	result, err := h.pipeline.UpdateSitemap(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) DeleteSitemap(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	h.pipeline.StopScrape(id)
	deleted, err := h.repo.DeleteSitemap(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "sitemap not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RefreshSitemap(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.pipeline.RefreshSitemap(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SitemapStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetSitemapStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
