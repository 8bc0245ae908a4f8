package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/justbri/reelscrape/models"
)

const sitemapColumns = `s.id, s.site_name, s.url, s.status, s.created_by, COALESCE(u.username, ''), s.created_at, s.updated_at`

func scanSitemap(row rowScanner) (*models.Sitemap, error) {
	var s models.Sitemap
	var createdBy sql.NullInt64
	if err := row.Scan(&s.ID, &s.SiteName, &s.URL, &s.Status, &createdBy, &s.CreatedByName, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if createdBy.Valid {
		s.CreatedBy = &createdBy.Int64
	}
	return &s, nil
}

func (r *Repository) CreateSitemap(ctx context.Context, in models.SitemapInput) (*models.Sitemap, error) {
	status := in.Status
	if status == "" {
		status = models.SitemapActive
	}

	var createdBy sql.NullInt64
	if in.CreatedBy != nil {
		createdBy = sql.NullInt64{Int64: *in.CreatedBy, Valid: true}
	}

	var s models.Sitemap
	var creator sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sitemaps (site_name, url, status, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, site_name, url, status, created_by, created_at, updated_at`,
		in.SiteName, in.URL, status, createdBy,
	).Scan(&s.ID, &s.SiteName, &s.URL, &s.Status, &creator, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapError(err, "create sitemap")
	}
	if creator.Valid {
		s.CreatedBy = &creator.Int64
	}
	return &s, nil
}

func (r *Repository) GetSitemapByID(ctx context.Context, id int64) (*models.Sitemap, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sitemapColumns+`
		 FROM sitemaps s LEFT JOIN users u ON s.created_by = u.id
		 WHERE s.id = $1`, id)
	s, err := scanSitemap(row)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("get sitemap %d", id))
	}
	return s, nil
}

func (r *Repository) GetAllSitemaps(ctx context.Context) ([]models.Sitemap, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sitemapColumns+`
		 FROM sitemaps s LEFT JOIN users u ON s.created_by = u.id
		 ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, mapError(err, "list sitemaps")
	}
	defer rows.Close()

	sitemaps := []models.Sitemap{}
	for rows.Next() {
		s, err := scanSitemap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sitemap: %w", err)
		}
		sitemaps = append(sitemaps, *s)
	}
	return sitemaps, rows.Err()
}

// UpdateSitemap applies the non-nil fields of upd. It reports false when no
// row matched or upd is empty.
func (r *Repository) UpdateSitemap(ctx context.Context, id int64, upd models.SitemapUpdate) (bool, error) {
	b := sitemapSet(upd)
	if b.empty() {
		return false, nil
	}
	query, args := b.statement("sitemaps", id)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, mapError(err, fmt.Sprintf("update sitemap %d", id))
	}
	return affected(res)
}

// ReplaceSitemapURL updates the sitemap and drops every candidate and raw
// movie previously derived from it, in one transaction.
func (r *Repository) ReplaceSitemapURL(ctx context.Context, id int64, upd models.SitemapUpdate) (bool, error) {
	b := sitemapSet(upd)
	if b.empty() {
		return false, nil
	}
	query, args := b.statement("sitemaps", id)

	var found bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return mapError(err, fmt.Sprintf("update sitemap %d", id))
		}
		if found, err = affected(res); err != nil || !found {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM extracted_movies WHERE sitemap_id = $1", id); err != nil {
			return fmt.Errorf("reset extracted movies: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM raw_movies WHERE scraped_from = $1", id); err != nil {
			return fmt.Errorf("reset raw movies: %w", err)
		}
		return nil
	})
	return found, err
}

func sitemapSet(upd models.SitemapUpdate) *setBuilder {
	b := &setBuilder{}
	b.add("site_name", upd.SiteName)
	b.add("url", upd.URL)
	b.add("status", upd.Status)
	return b
}

// DeleteSitemap removes the sitemap; candidates and raw movies go with it.
func (r *Repository) DeleteSitemap(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM sitemaps WHERE id = $1", id)
	if err != nil {
		return false, mapError(err, fmt.Sprintf("delete sitemap %d", id))
	}
	return affected(res)
}

func (r *Repository) GetSitemapStats(ctx context.Context) (*models.SitemapStats, error) {
	var st models.SitemapStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'inactive'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE created_at >= CURRENT_DATE)
		FROM sitemaps`,
	).Scan(&st.Total, &st.Active, &st.Inactive, &st.Pending, &st.CreatedToday)
	if err != nil {
		return nil, mapError(err, "sitemap stats")
	}
	return &st, nil
}
