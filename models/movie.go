package models

import "time"

// Candidate and raw movie statuses
const (
	MovieActive    = "active"
	MovieInactive  = "inactive"
	MovieProcessed = "processed"
)

// ExtractedMovie is a URL discovered in a sitemap that looks like a movie page.
type ExtractedMovie struct {
	ID          int64     `db:"id" json:"id"`
	SitemapID   int64     `db:"sitemap_id" json:"sitemap_id"`
	Title       string    `db:"title" json:"title"`
	URL         string    `db:"url" json:"url"`
	SiteName    string    `db:"site_name" json:"site_name"`
	Status      string    `db:"status" json:"status"`
	ExtractedAt time.Time `db:"extracted_at" json:"extracted_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type ExtractedMovieInput struct {
	SitemapID int64
	Title     string
	URL       string
	SiteName  string
}

type ExtractedMovieStats struct {
	Total           int        `json:"total"`
	Active          int        `json:"active"`
	Processed       int        `json:"processed"`
	Sitemaps        int        `json:"sitemaps"`
	FirstExtraction *time.Time `json:"first_extraction,omitempty"`
	LastExtraction  *time.Time `json:"last_extraction,omitempty"`
}

// MovieDetails is what the extractor pulls out of one movie page.
type MovieDetails struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	ImageData   string `json:"image_data,omitempty"`
	ReleaseDate string `json:"release_date"`
	Genre       string `json:"genre"`
	Rating      string `json:"rating"`
	Duration    string `json:"duration"`
	Director    string `json:"director"`
	Cast        string `json:"cast"`
	Quality     string `json:"quality"`
	Size        string `json:"size"`
	Language    string `json:"language"`
}

// RawMovie is a persisted scrape result.
type RawMovie struct {
	ID int64 `db:"id" json:"id"`
	MovieDetails
	ScrapedFrom *int64    `db:"scraped_from" json:"scraped_from,omitempty"`
	SiteName    string    `db:"site_name" json:"site_name,omitempty"`
	Status      string    `db:"status" json:"status"`
	ScrapedAt   time.Time `db:"scraped_at" json:"scraped_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type RawMovieInput struct {
	MovieDetails
	ScrapedFrom int64
	Status      string
}

// RawMovieUpdate carries a partial update; nil fields are left alone.
type RawMovieUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
	ReleaseDate *string `json:"release_date"`
	Genre       *string `json:"genre"`
	Rating      *string `json:"rating"`
	Duration    *string `json:"duration"`
	Director    *string `json:"director"`
	Cast        *string `json:"cast"`
	Quality     *string `json:"quality"`
	Size        *string `json:"size"`
	Language    *string `json:"language"`
	Status      *string `json:"status"`
}

type RawMovieStats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Inactive     int `json:"inactive"`
	Processed    int `json:"processed"`
	ScrapedToday int `json:"scraped_today"`
}

// ValidMovieStatus reports whether s is a candidate or raw movie status.
func ValidMovieStatus(s string) bool {
	switch s {
	case MovieActive, MovieInactive, MovieProcessed:
		return true
	}
	return false
}
