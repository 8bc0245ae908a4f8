package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/justbri/reelscrape/models"
)

const rawMovieColumns = `rm.id, rm.title, rm.url, rm.description, rm.image_url, rm.image_data,
	rm.release_date, rm.genre, rm.rating, rm.duration, rm.director, rm."cast",
	rm.quality, rm.size, rm.language, rm.scraped_from, COALESCE(s.site_name, ''),
	rm.status, rm.scraped_at, rm.created_at, rm.updated_at`

const rawMovieFrom = ` FROM raw_movies rm LEFT JOIN sitemaps s ON rm.scraped_from = s.id`

func scanRawMovie(row rowScanner) (*models.RawMovie, error) {
	var m models.RawMovie
	var description, imageURL, imageData, releaseDate, genre, rating, duration,
		director, cast, quality, size, language sql.NullString
	var scrapedFrom sql.NullInt64

	err := row.Scan(&m.ID, &m.Title, &m.URL, &description, &imageURL, &imageData,
		&releaseDate, &genre, &rating, &duration, &director, &cast,
		&quality, &size, &language, &scrapedFrom, &m.SiteName,
		&m.Status, &m.ScrapedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	m.Description = description.String
	m.ImageURL = imageURL.String
	m.ImageData = imageData.String
	m.ReleaseDate = releaseDate.String
	m.Genre = genre.String
	m.Rating = rating.String
	m.Duration = duration.String
	m.Director = director.String
	m.Cast = cast.String
	m.Quality = quality.String
	m.Size = size.String
	m.Language = language.String
	if scrapedFrom.Valid {
		m.ScrapedFrom = &scrapedFrom.Int64
	}
	return &m, nil
}

func rawMovieArgs(in models.RawMovieInput) []any {
	status := in.Status
	if status == "" {
		status = models.MovieActive
	}
	return []any{
		in.Title, in.URL, nullString(in.Description), nullString(in.ImageURL), nullString(in.ImageData),
		nullString(in.ReleaseDate), nullString(in.Genre), nullString(in.Rating), nullString(in.Duration),
		nullString(in.Director), nullString(in.Cast), nullString(in.Quality), nullString(in.Size),
		nullString(in.Language), in.ScrapedFrom, status,
	}
}

const insertRawMovie = `INSERT INTO raw_movies (
		title, url, description, image_url, image_data, release_date, genre, rating,
		duration, director, "cast", quality, size, language, scraped_from, status
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	RETURNING id`

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func createRawMovie(ctx context.Context, q execQuerier, in models.RawMovieInput) (int64, error) {
	var id int64
	if err := q.QueryRowContext(ctx, insertRawMovie, rawMovieArgs(in)...).Scan(&id); err != nil {
		return 0, mapError(err, "create raw movie "+in.URL)
	}
	return id, nil
}

// CreateRawMovie stores one scrape result. A URL that is already stored
// yields ErrDuplicate.
func (r *Repository) CreateRawMovie(ctx context.Context, in models.RawMovieInput) (*models.RawMovie, error) {
	id, err := createRawMovie(ctx, r.db, in)
	if err != nil {
		return nil, err
	}
	return r.GetRawMovieByID(ctx, id)
}

// SaveScrapedCandidate stores the raw movie and marks its candidate processed
// in a single transaction, so a candidate is never processed without a record.
func (r *Repository) SaveScrapedCandidate(ctx context.Context, candidateID int64, in models.RawMovieInput) (*models.RawMovie, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if id, err = createRawMovie(ctx, tx, in); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE extracted_movies SET status = $1, updated_at = NOW() WHERE id = $2",
			models.MovieProcessed, candidateID)
		if err != nil {
			return fmt.Errorf("claim candidate %d: %w", candidateID, err)
		}
		ok, err := affected(res)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("claim candidate %d: %w", candidateID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetRawMovieByID(ctx, id)
}

func (r *Repository) GetRawMovieByID(ctx context.Context, id int64) (*models.RawMovie, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+rawMovieColumns+rawMovieFrom+` WHERE rm.id = $1`, id)
	m, err := scanRawMovie(row)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("get raw movie %d", id))
	}
	return m, nil
}

func (r *Repository) queryRawMovies(ctx context.Context, query string, args ...any) ([]models.RawMovie, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movies := []models.RawMovie{}
	for rows.Next() {
		m, err := scanRawMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan raw movie: %w", err)
		}
		movies = append(movies, *m)
	}
	return movies, rows.Err()
}

func (r *Repository) GetAllRawMovies(ctx context.Context) ([]models.RawMovie, error) {
	movies, err := r.queryRawMovies(ctx, `SELECT `+rawMovieColumns+rawMovieFrom+` ORDER BY rm.scraped_at DESC, rm.id DESC`)
	if err != nil {
		return nil, mapError(err, "list raw movies")
	}
	return movies, nil
}

func (r *Repository) GetRawMoviesBySitemap(ctx context.Context, sitemapID int64) ([]models.RawMovie, error) {
	movies, err := r.queryRawMovies(ctx,
		`SELECT `+rawMovieColumns+rawMovieFrom+` WHERE rm.scraped_from = $1 ORDER BY rm.scraped_at DESC`, sitemapID)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("list raw movies of sitemap %d", sitemapID))
	}
	return movies, nil
}

// UpdateRawMovie applies the non-nil fields of upd and returns the stored row.
func (r *Repository) UpdateRawMovie(ctx context.Context, id int64, upd models.RawMovieUpdate) (*models.RawMovie, error) {
	b := &setBuilder{}
	b.add("title", upd.Title)
	b.add("description", upd.Description)
	b.add("image_url", upd.ImageURL)
	b.add("release_date", upd.ReleaseDate)
	b.add("genre", upd.Genre)
	b.add("rating", upd.Rating)
	b.add("duration", upd.Duration)
	b.add("director", upd.Director)
	b.add(`"cast"`, upd.Cast)
	b.add("quality", upd.Quality)
	b.add("size", upd.Size)
	b.add("language", upd.Language)
	b.add("status", upd.Status)
	if b.empty() {
		return r.GetRawMovieByID(ctx, id)
	}

	query, args := b.statement("raw_movies", id)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("update raw movie %d", id))
	}
	ok, err := affected(res)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("update raw movie %d: %w", id, ErrNotFound)
	}
	return r.GetRawMovieByID(ctx, id)
}

func (r *Repository) DeleteRawMovie(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM raw_movies WHERE id = $1", id)
	if err != nil {
		return false, mapError(err, fmt.Sprintf("delete raw movie %d", id))
	}
	return affected(res)
}

// BulkDeleteRawMovies removes every listed id and returns the count removed.
func (r *Repository) BulkDeleteRawMovies(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var removed int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "DELETE FROM raw_movies WHERE id = $1")
		if err != nil {
			return fmt.Errorf("prepare bulk delete: %w", err)
		}
		defer stmt.Close()
		for _, id := range ids {
			res, err := stmt.ExecContext(ctx, id)
			if err != nil {
				return fmt.Errorf("delete raw movie %d: %w", id, err)
			}
			n, _ := res.RowsAffected()
			removed += n
		}
		return nil
	})
	return removed, err
}

// DeleteRawMoviesBySitemapID returns the number of rows removed.
func (r *Repository) DeleteRawMoviesBySitemapID(ctx context.Context, sitemapID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM raw_movies WHERE scraped_from = $1", sitemapID)
	if err != nil {
		return 0, mapError(err, fmt.Sprintf("delete raw movies of sitemap %d", sitemapID))
	}
	return res.RowsAffected()
}

func (r *Repository) GetRawMovieStats(ctx context.Context) (*models.RawMovieStats, error) {
	var st models.RawMovieStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'inactive'),
			COUNT(*) FILTER (WHERE status = 'processed'),
			COUNT(*) FILTER (WHERE scraped_at >= CURRENT_DATE)
		FROM raw_movies`,
	).Scan(&st.Total, &st.Active, &st.Inactive, &st.Processed, &st.ScrapedToday)
	if err != nil {
		return nil, mapError(err, "raw movie stats")
	}
	return &st, nil
}
