package models

import "time"

// Sitemap statuses
const (
	SitemapActive   = "active"
	SitemapInactive = "inactive"
	SitemapPending  = "pending"
)

// Sitemap is an admin-registered source of candidate movie URLs.
type Sitemap struct {
	ID            int64     `db:"id" json:"id"`
	SiteName      string    `db:"site_name" json:"site_name"`
	URL           string    `db:"url" json:"url"`
	Status        string    `db:"status" json:"status"`
	CreatedBy     *int64    `db:"created_by" json:"created_by,omitempty"`
	CreatedByName string    `db:"created_by_username" json:"created_by_username,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type SitemapInput struct {
	SiteName  string `json:"site_name"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	CreatedBy *int64 `json:"-"`
}

// SitemapUpdate carries a partial update; nil fields are left alone.
type SitemapUpdate struct {
	SiteName *string `json:"site_name"`
	URL      *string `json:"url"`
	Status   *string `json:"status"`
}

func (u SitemapUpdate) Empty() bool {
	return u.SiteName == nil && u.URL == nil && u.Status == nil
}

type SitemapStats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Inactive     int `json:"inactive"`
	Pending      int `json:"pending"`
	CreatedToday int `json:"created_today"`
}

// ValidSitemapStatus reports whether s is one of the sitemap statuses.
func ValidSitemapStatus(s string) bool {
	switch s {
	case SitemapActive, SitemapInactive, SitemapPending:
		return true
	}
	return false
}
