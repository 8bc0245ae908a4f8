package database

import (
	"database/sql"
	"fmt"
)

var migrations = []struct {
	name string
	sql  string
}{
	{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username VARCHAR(255) UNIQUE NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		is_admin BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`},
	{"sitemaps", `
	CREATE TABLE IF NOT EXISTS sitemaps (
		id SERIAL PRIMARY KEY,
		site_name VARCHAR(255) NOT NULL,
		url TEXT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		created_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT unique_sitemap_url UNIQUE (url),
		CONSTRAINT sitemaps_status_check CHECK (status IN ('active', 'inactive', 'pending'))
	);
	CREATE INDEX IF NOT EXISTS idx_sitemaps_status ON sitemaps(status);
	`},
	{"extracted_movies", `
	CREATE TABLE IF NOT EXISTS extracted_movies (
		id SERIAL PRIMARY KEY,
		sitemap_id INTEGER NOT NULL REFERENCES sitemaps(id) ON DELETE CASCADE,
		title VARCHAR(500) NOT NULL,
		url TEXT NOT NULL,
		site_name VARCHAR(255) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		extracted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT unique_extracted_url_per_sitemap UNIQUE (url, sitemap_id),
		CONSTRAINT extracted_movies_status_check CHECK (status IN ('active', 'inactive', 'processed'))
	);
	CREATE INDEX IF NOT EXISTS idx_extracted_movies_sitemap ON extracted_movies(sitemap_id);
	CREATE INDEX IF NOT EXISTS idx_extracted_movies_status ON extracted_movies(status);
	`},
	{"raw_movies", `
	CREATE TABLE IF NOT EXISTS raw_movies (
		id SERIAL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		url TEXT NOT NULL UNIQUE,
		description TEXT,
		image_url TEXT,
		image_data TEXT,
		release_date VARCHAR(50),
		genre VARCHAR(100),
		rating VARCHAR(50),
		duration VARCHAR(50),
		director VARCHAR(200),
		"cast" TEXT,
		quality VARCHAR(50),
		size VARCHAR(50),
		language VARCHAR(100),
		scraped_from INTEGER REFERENCES sitemaps(id) ON DELETE CASCADE,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		scraped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT raw_movies_status_check CHECK (status IN ('active', 'inactive', 'processed'))
	);
	CREATE INDEX IF NOT EXISTS idx_raw_movies_scraped_from ON raw_movies(scraped_from);
	CREATE INDEX IF NOT EXISTS idx_raw_movies_status ON raw_movies(status);
	`},
	{"raw_movies columns", `
	DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name='raw_movies' AND column_name='quality') THEN
			ALTER TABLE raw_movies ADD COLUMN quality VARCHAR(50);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name='raw_movies' AND column_name='size') THEN
			ALTER TABLE raw_movies ADD COLUMN size VARCHAR(50);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name='raw_movies' AND column_name='language') THEN
			ALTER TABLE raw_movies ADD COLUMN language VARCHAR(100);
		END IF;
	END $$;
	`},
}

// RunMigrations applies the schema against the global connection.
func RunMigrations() error {
	return Migrate(DB)
}

// Migrate applies every migration in order. Each statement is idempotent.
func Migrate(db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("failed to run %s migration: %w", m.name, err)
		}
	}

	// Ensure user named 'admin' is actually an admin
	if _, err := db.Exec("UPDATE users SET is_admin = TRUE WHERE username = 'admin'"); err != nil {
		return fmt.Errorf("failed to ensure admin user has admin flag: %w", err)
	}
	return nil
}
