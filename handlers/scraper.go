package handlers

import (
	"net/http"
)

type scrapeRequest struct {
	Limit          int   `json:"limit"`
	DownloadImages *bool `json:"download_images"`
}

func (h *Handler) images(override *bool) bool {
	if override != nil {
		return *override
	}
	return h.downloadImages
}

// StartScrape launches a background scrape of a sitemap's active candidates
// and answers 202 with the new job.
func (h *Handler) StartScrape(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req scrapeRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit cannot be negative")
		return
	}

	job, err := h.pipeline.StartSitemapScrape(r.Context(), id, req.Limit, h.images(req.DownloadImages))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) ScrapeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	job, found := h.pipeline.JobStatus(id)
	if !found {
		writeError(w, http.StatusNotFound, "no scrape job for this sitemap")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) StopScrape(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if !h.pipeline.StopScrape(id) {
		writeError(w, http.StatusNotFound, "no running scrape for this sitemap")
		return
	}
	h.logger.Info("Scrape stop requested", "sitemap_id", id)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.Jobs())
}
