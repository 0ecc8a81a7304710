package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBackend struct {
	platform string
	err      error
	syncs    atomic.Int32
}

func (b *countingBackend) Platform() string { return b.platform }
func (b *countingBackend) Enabled() bool    { return true }

func (b *countingBackend) Publish(ctx context.Context, draft *transfer.Draft) error { return nil }

func (b *countingBackend) Reply(ctx context.Context, targetID string, draft *transfer.Draft) error {
	return nil
}

func (b *countingBackend) Delete(ctx context.Context, id string) error { return nil }

func (b *countingBackend) SyncRecent(ctx context.Context) error {
	b.syncs.Add(1)
	return b.err
}

func syncTask(t *testing.T, platform string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(SyncRecentPayload{Platform: platform})
	require.NoError(t, err)
	return asynq.NewTask(TaskTypeSyncRecent, payload)
}

func TestHandleSyncRecentTask(t *testing.T) {
	twitter := &countingBackend{platform: models.PlatformTwitter}
	bsky := &countingBackend{platform: models.PlatformBluesky}
	q := NewQueue(twitter, bsky)

	require.NoError(t, q.HandleSyncRecentTask(context.Background(), syncTask(t, models.PlatformBluesky)))

	assert.Equal(t, int32(0), twitter.syncs.Load())
	assert.Equal(t, int32(1), bsky.syncs.Load())
}

func TestHandleSyncRecentTaskSwallowsSyncErrors(t *testing.T) {
	twitter := &countingBackend{platform: models.PlatformTwitter, err: errors.New("timeline not found")}
	q := NewQueue(twitter)

	assert.NoError(t, q.HandleSyncRecentTask(context.Background(), syncTask(t, models.PlatformTwitter)))
	assert.Equal(t, int32(1), twitter.syncs.Load())
}

func TestHandleSyncRecentTaskBadPayload(t *testing.T) {
	q := NewQueue()
	assert.Error(t, q.HandleSyncRecentTask(context.Background(), asynq.NewTask(TaskTypeSyncRecent, []byte("{"))))
}

func TestSyncPlatform(t *testing.T) {
	ok := &countingBackend{platform: models.PlatformTwitter}
	disabled := &countingBackend{platform: models.PlatformBluesky, err: service.ErrPlatformDisabled}
	q := NewQueue(ok, disabled)

	assert.True(t, q.SyncPlatform(context.Background(), models.PlatformTwitter))
	assert.False(t, q.SyncPlatform(context.Background(), models.PlatformBluesky))
	assert.False(t, q.SyncPlatform(context.Background(), "mastodon"))
}

func TestLocalDispatcherRunsDetached(t *testing.T) {
	twitter := &countingBackend{platform: models.PlatformTwitter}
	bsky := &countingBackend{platform: models.PlatformBluesky}
	d := NewLocalDispatcher(NewQueue(twitter, bsky))

	ctx, cancel := context.WithCancel(context.Background())
	d.Resync(ctx, models.PlatformTwitter, models.PlatformBluesky)
	cancel()

	assert.Eventually(t, func() bool {
		return twitter.syncs.Load() == 1 && bsky.syncs.Load() == 1
	}, time.Second, 5*time.Millisecond)
}
