package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
)

type BlueskyPostRepository interface {
	Upsert(ctx context.Context, post *models.BlueskyPost) error
	ListRecent(ctx context.Context, limit int) ([]*models.BlueskyPost, error)
	Delete(ctx context.Context, postID string) (bool, error)
}

type blueskyPostRepository struct {
	db *sql.DB
}

func NewBlueskyPostRepository(db *sql.DB) BlueskyPostRepository {
	return &blueskyPostRepository{db: db}
}

func (r *blueskyPostRepository) Upsert(ctx context.Context, post *models.BlueskyPost) error {
	query := `
		INSERT INTO bluesky_posts (post_id, text, posted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id) DO UPDATE SET text = EXCLUDED.text, posted_at = EXCLUDED.posted_at
	`

	_, err := r.db.ExecContext(ctx, query, post.PostID, post.Text, post.PostedAt.UTC())
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *blueskyPostRepository) ListRecent(ctx context.Context, limit int) ([]*models.BlueskyPost, error) {
	query := `SELECT post_id, text, posted_at FROM bluesky_posts ORDER BY posted_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.BlueskyPost
	for rows.Next() {
		var post models.BlueskyPost
		if err := rows.Scan(&post.PostID, &post.Text, &post.PostedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, &post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return posts, nil
}

func (r *blueskyPostRepository) Delete(ctx context.Context, postID string) (bool, error) {
	query := `DELETE FROM bluesky_posts WHERE post_id = $1`

	res, err := r.db.ExecContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	return n > 0, nil
}
