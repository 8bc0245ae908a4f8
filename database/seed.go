package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/justbri/reelscrape/shared/config"
	"golang.org/x/crypto/bcrypt"
)

func SeedAdminUser() error {
	return SeedAdmin(DB,
		config.GetEnv("ADMIN_USERNAME", "admin"),
		config.GetEnv("ADMIN_PASSWORD", ""),
		config.GetEnv("ADMIN_EMAIL", "admin@reelscrape.local"),
	)
}

// SeedAdmin creates the admin account unless it exists. An empty password
// skips seeding.
func SeedAdmin(db *sql.DB, username, password, email string) error {
	if password == "" {
		slog.Warn("ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM users WHERE username = $1", username).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check for existing admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = db.Exec(
		"INSERT INTO users (username, email, password_hash, is_admin) VALUES ($1, $2, $3, $4)",
		username,
		email,
		string(hashedPassword),
		true,
	)
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	slog.Info("Seeded admin user", "username", username)
	return nil
}
