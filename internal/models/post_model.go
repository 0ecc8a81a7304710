package models

import "time"

type Tweet struct {
	TweetID   string    `db:"tweet_id" json:"tweet_id"`
	Text      string    `db:"text" json:"text"`
	TweetedAt time.Time `db:"tweeted_at" json:"tweeted_at"`
}

type BlueskyPost struct {
	PostID   string    `db:"post_id" json:"post_id"` // at:// uri
	Text     string    `db:"text" json:"text"`
	PostedAt time.Time `db:"posted_at" json:"posted_at"`
}

// TimelineEntry is one row of the merged display timeline. A cross-posted
// item carries both ids; a single-service item leaves the other side empty.
type TimelineEntry struct {
	Text       string    `json:"text"`
	PostedAt   time.Time `json:"posted_at"`
	TwitterID  string    `json:"twitter_id,omitempty"`
	TwitterURL string    `json:"twitter_url,omitempty"`
	BlueskyID  string    `json:"bluesky_id,omitempty"`
	BlueskyURL string    `json:"bluesky_url,omitempty"`
}

const (
	PlatformTwitter = "twitter"
	PlatformBluesky = "bluesky"
)
