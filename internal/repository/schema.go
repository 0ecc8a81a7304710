package repository

import (
	"context"
	"database/sql"
	"log/slog"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tweets (
		tweet_id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		tweeted_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bluesky_posts (
		post_id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		posted_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		discord_username TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
}

// Migrate creates the cache and session tables if they do not exist. The
// statements are valid on both Postgres and SQLite.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			slog.Info(err.Error())
			return err
		}
	}
	return nil
}
