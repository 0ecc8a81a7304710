package service

import (
	"context"
	"sort"
	"time"

	"github.com/maheshrc27/crosspost/internal/bluesky"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

const (
	// MergeWindow is the largest timestamp skew at which a tweet and a
	// Bluesky post with identical text are shown as one entry.
	MergeWindow   = 60 * time.Second
	timelineLimit = 10
)

type TimelineService interface {
	Recent(ctx context.Context) ([]models.TimelineEntry, error)
}

type timelineService struct {
	tweets    repository.TweetRepository
	bluesky   repository.BlueskyPostRepository
	permalink func(tweetID string) string
}

func NewTimelineService(tweets repository.TweetRepository, bsky repository.BlueskyPostRepository, permalink func(tweetID string) string) TimelineService {
	return &timelineService{tweets: tweets, bluesky: bsky, permalink: permalink}
}

func (s *timelineService) Recent(ctx context.Context) ([]models.TimelineEntry, error) {
	tweets, err := s.tweets.ListRecent(ctx, timelineLimit)
	if err != nil {
		return nil, err
	}
	posts, err := s.bluesky.ListRecent(ctx, timelineLimit)
	if err != nil {
		return nil, err
	}
	return MergeTimeline(tweets, posts, s.permalink), nil
}

// MergeTimeline pairs each Bluesky post with the nearest unpaired tweet of
// equal text within MergeWindow, then orders everything newest first.
// Posts whose text differs per platform are never paired.
func MergeTimeline(tweets []*models.Tweet, posts []*models.BlueskyPost, permalink func(tweetID string) string) []models.TimelineEntry {
	paired := make([]bool, len(tweets))
	entries := make([]models.TimelineEntry, 0, len(tweets)+len(posts))

	for _, post := range posts {
		entry := models.TimelineEntry{
			Text:       post.Text,
			PostedAt:   post.PostedAt,
			BlueskyID:  post.PostID,
			BlueskyURL: bluesky.WebURL(post.PostID),
		}

		best := -1
		var bestSkew time.Duration
		for i, tweet := range tweets {
			if paired[i] || tweet.Text != post.Text {
				continue
			}
			skew := tweet.TweetedAt.Sub(post.PostedAt)
			if skew < 0 {
				skew = -skew
			}
			if skew > MergeWindow {
				continue
			}
			if best == -1 || skew < bestSkew {
				best, bestSkew = i, skew
			}
		}

		if best >= 0 {
			paired[best] = true
			entry.TwitterID = tweets[best].TweetID
			if permalink != nil {
				entry.TwitterURL = permalink(tweets[best].TweetID)
			}
			if tweets[best].TweetedAt.After(entry.PostedAt) {
				entry.PostedAt = tweets[best].TweetedAt
			}
		}
		entries = append(entries, entry)
	}

	for i, tweet := range tweets {
		if paired[i] {
			continue
		}
		entry := models.TimelineEntry{
			Text:      tweet.Text,
			PostedAt:  tweet.TweetedAt,
			TwitterID: tweet.TweetID,
		}
		if permalink != nil {
			entry.TwitterURL = permalink(tweet.TweetID)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PostedAt.After(entries[j].PostedAt)
	})
	return entries
}
