package service

import (
	"context"
	"testing"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mergeBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func permalink(id string) string { return "https://twitter.com/crossposter/status/" + id }

func TestMergeTimelineWithinWindow(t *testing.T) {
	tweets := []*models.Tweet{{TweetID: "1", Text: "same", TweetedAt: mergeBase.Add(45 * time.Second)}}
	posts := []*models.BlueskyPost{{PostID: "at://did:plc:abc/app.bsky.feed.post/a", Text: "same", PostedAt: mergeBase}}

	entries := MergeTimeline(tweets, posts, permalink)

	require.Len(t, entries, 1)
	assert.Equal(t, "1", entries[0].TwitterID)
	assert.Equal(t, "https://twitter.com/crossposter/status/1", entries[0].TwitterURL)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/a", entries[0].BlueskyID)
	assert.Equal(t, "https://bsky.app/profile/did:plc:abc/post/a", entries[0].BlueskyURL)
	assert.True(t, entries[0].PostedAt.Equal(mergeBase.Add(45*time.Second)))
}

func TestMergeTimelineOutsideWindow(t *testing.T) {
	tweets := []*models.Tweet{{TweetID: "1", Text: "same", TweetedAt: mergeBase.Add(90 * time.Second)}}
	posts := []*models.BlueskyPost{{PostID: "at://did:plc:abc/app.bsky.feed.post/a", Text: "same", PostedAt: mergeBase}}

	entries := MergeTimeline(tweets, posts, permalink)

	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].TwitterID)
	assert.Empty(t, entries[0].BlueskyID)
	assert.Empty(t, entries[1].TwitterID)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/a", entries[1].BlueskyID)
}

func TestMergeTimelineRequiresEqualText(t *testing.T) {
	tweets := []*models.Tweet{{TweetID: "1", Text: "hello…", TweetedAt: mergeBase}}
	posts := []*models.BlueskyPost{{PostID: "at://x/app.bsky.feed.post/a", Text: "hello world", PostedAt: mergeBase}}

	assert.Len(t, MergeTimeline(tweets, posts, permalink), 2)
}

func TestMergeTimelinePairsNearestTweetOnce(t *testing.T) {
	tweets := []*models.Tweet{
		{TweetID: "far", Text: "gm", TweetedAt: mergeBase.Add(50 * time.Second)},
		{TweetID: "near", Text: "gm", TweetedAt: mergeBase.Add(5 * time.Second)},
	}
	posts := []*models.BlueskyPost{
		{PostID: "at://x/app.bsky.feed.post/a", Text: "gm", PostedAt: mergeBase},
	}

	entries := MergeTimeline(tweets, posts, permalink)

	require.Len(t, entries, 2)
	assert.Equal(t, "far", entries[0].TwitterID)
	assert.Empty(t, entries[0].BlueskyID)
	assert.Equal(t, "near", entries[1].TwitterID)
	assert.Equal(t, "at://x/app.bsky.feed.post/a", entries[1].BlueskyID)
}

func TestMergeTimelineOrdersNewestFirst(t *testing.T) {
	tweets := []*models.Tweet{
		{TweetID: "old", Text: "a", TweetedAt: mergeBase},
		{TweetID: "new", Text: "c", TweetedAt: mergeBase.Add(time.Hour)},
	}
	posts := []*models.BlueskyPost{
		{PostID: "at://x/app.bsky.feed.post/mid", Text: "b", PostedAt: mergeBase.Add(30 * time.Minute)},
	}

	entries := MergeTimeline(tweets, posts, permalink)

	require.Len(t, entries, 3)
	assert.Equal(t, "new", entries[0].TwitterID)
	assert.Equal(t, "at://x/app.bsky.feed.post/mid", entries[1].BlueskyID)
	assert.Equal(t, "old", entries[2].TwitterID)
}

func TestTimelineRecentReadsBothCaches(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tweets := repository.NewTweetRepository(db)
	posts := repository.NewBlueskyPostRepository(db)

	require.NoError(t, tweets.Upsert(ctx, &models.Tweet{TweetID: "1", Text: "hi", TweetedAt: mergeBase.Add(10 * time.Second)}))
	require.NoError(t, posts.Upsert(ctx, &models.BlueskyPost{PostID: "at://did:plc:abc/app.bsky.feed.post/a", Text: "hi", PostedAt: mergeBase}))
	require.NoError(t, tweets.Upsert(ctx, &models.Tweet{TweetID: "2", Text: "later", TweetedAt: mergeBase.Add(time.Hour)}))

	entries, err := NewTimelineService(tweets, posts, permalink).Recent(ctx)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2", entries[0].TwitterID)
	assert.Equal(t, "1", entries[1].TwitterID)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/a", entries[1].BlueskyID)
}
