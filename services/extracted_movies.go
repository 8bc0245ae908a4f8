package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/justbri/reelscrape/models"
)

const extractedColumns = `id, sitemap_id, title, url, site_name, status, extracted_at, created_at, updated_at`

// extractedInsertChunk bounds the rows per INSERT so large sitemaps stay
// under the PostgreSQL parameter limit.
const extractedInsertChunk = 1000

func scanExtracted(row rowScanner) (*models.ExtractedMovie, error) {
	var m models.ExtractedMovie
	if err := row.Scan(&m.ID, &m.SitemapID, &m.Title, &m.URL, &m.SiteName, &m.Status, &m.ExtractedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) queryExtracted(ctx context.Context, query string, args ...any) ([]models.ExtractedMovie, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movies := []models.ExtractedMovie{}
	for rows.Next() {
		m, err := scanExtracted(rows)
		if err != nil {
			return nil, fmt.Errorf("scan extracted movie: %w", err)
		}
		movies = append(movies, *m)
	}
	return movies, rows.Err()
}

// CreateExtractedMoviesBatch inserts candidates, silently skipping any
// (url, sitemap_id) pair that already exists. Only new rows are returned.
func (r *Repository) CreateExtractedMoviesBatch(ctx context.Context, in []models.ExtractedMovieInput) ([]models.ExtractedMovie, error) {
	created := []models.ExtractedMovie{}
	for start := 0; start < len(in); start += extractedInsertChunk {
		end := min(start+extractedInsertChunk, len(in))
		chunk := in[start:end]

		placeholders := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*4)
		for i, m := range chunk {
			n := i * 4
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4))
			args = append(args, m.SitemapID, m.Title, m.URL, m.SiteName)
		}

		query := `INSERT INTO extracted_movies (sitemap_id, title, url, site_name)
			VALUES ` + strings.Join(placeholders, ", ") + `
			ON CONFLICT (url, sitemap_id) DO NOTHING
			RETURNING ` + extractedColumns

		rows, err := r.queryExtracted(ctx, query, args...)
		if err != nil {
			return created, mapError(err, "insert extracted movies")
		}
		created = append(created, rows...)
	}
	return created, nil
}

func (r *Repository) GetAllExtractedMovies(ctx context.Context) ([]models.ExtractedMovie, error) {
	movies, err := r.queryExtracted(ctx, `SELECT `+extractedColumns+` FROM extracted_movies ORDER BY extracted_at DESC, id DESC`)
	if err != nil {
		return nil, mapError(err, "list extracted movies")
	}
	return movies, nil
}

// GetActiveExtractedMovies returns up to limit unprocessed candidates of a
// sitemap, oldest first. A limit of 0 means no limit.
func (r *Repository) GetActiveExtractedMovies(ctx context.Context, sitemapID int64, limit int) ([]models.ExtractedMovie, error) {
	query := `SELECT ` + extractedColumns + ` FROM extracted_movies
		WHERE sitemap_id = $1 AND status = 'active'
		ORDER BY id`
	args := []any{sitemapID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	movies, err := r.queryExtracted(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("list active candidates of sitemap %d", sitemapID))
	}
	return movies, nil
}

func (r *Repository) GetExtractedMovieByID(ctx context.Context, id int64) (*models.ExtractedMovie, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+extractedColumns+` FROM extracted_movies WHERE id = $1`, id)
	m, err := scanExtracted(row)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("get extracted movie %d", id))
	}
	return m, nil
}

func (r *Repository) UpdateExtractedMovieStatus(ctx context.Context, id int64, status string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE extracted_movies SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return false, mapError(err, fmt.Sprintf("update extracted movie %d", id))
	}
	return affected(res)
}

func (r *Repository) DeleteExtractedMovie(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM extracted_movies WHERE id = $1", id)
	if err != nil {
		return false, mapError(err, fmt.Sprintf("delete extracted movie %d", id))
	}
	return affected(res)
}

// DeleteExtractedMoviesBySitemapID returns the number of rows removed.
func (r *Repository) DeleteExtractedMoviesBySitemapID(ctx context.Context, sitemapID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM extracted_movies WHERE sitemap_id = $1", sitemapID)
	if err != nil {
		return 0, mapError(err, fmt.Sprintf("delete extracted movies of sitemap %d", sitemapID))
	}
	return res.RowsAffected()
}

func (r *Repository) GetExtractedMovieStats(ctx context.Context) (*models.ExtractedMovieStats, error) {
	var st models.ExtractedMovieStats
	var first, last sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'processed'),
			COUNT(DISTINCT sitemap_id),
			MIN(extracted_at),
			MAX(extracted_at)
		FROM extracted_movies`,
	).Scan(&st.Total, &st.Active, &st.Processed, &st.Sitemaps, &first, &last)
	if err != nil {
		return nil, mapError(err, "extracted movie stats")
	}
	if first.Valid {
		st.FirstExtraction = &first.Time
	}
	if last.Valid {
		st.LastExtraction = &last.Time
	}
	return &st, nil
}
