package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
)

type TweetRepository interface {
	Upsert(ctx context.Context, tweet *models.Tweet) error
	ListRecent(ctx context.Context, limit int) ([]*models.Tweet, error)
	Delete(ctx context.Context, tweetID string) (bool, error)
}

type tweetRepository struct {
	db *sql.DB
}

func NewTweetRepository(db *sql.DB) TweetRepository {
	return &tweetRepository{db: db}
}

func (r *tweetRepository) Upsert(ctx context.Context, tweet *models.Tweet) error {
	query := `
		INSERT INTO tweets (tweet_id, text, tweeted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tweet_id) DO UPDATE SET text = EXCLUDED.text, tweeted_at = EXCLUDED.tweeted_at
	`

	_, err := r.db.ExecContext(ctx, query, tweet.TweetID, tweet.Text, tweet.TweetedAt.UTC())
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *tweetRepository) ListRecent(ctx context.Context, limit int) ([]*models.Tweet, error) {
	query := `SELECT tweet_id, text, tweeted_at FROM tweets ORDER BY tweeted_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var tweets []*models.Tweet
	for rows.Next() {
		var tweet models.Tweet
		if err := rows.Scan(&tweet.TweetID, &tweet.Text, &tweet.TweetedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		tweets = append(tweets, &tweet)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return tweets, nil
}

// Delete reports whether a row was removed. A missing row is not an error.
func (r *tweetRepository) Delete(ctx context.Context, tweetID string) (bool, error) {
	query := `DELETE FROM tweets WHERE tweet_id = $1`

	res, err := r.db.ExecContext(ctx, query, tweetID)
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
