package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/service"
)

// HandleSyncRecentTask never fails the task; sync errors are logged.
func (q *Queue) HandleSyncRecentTask(ctx context.Context, task *asynq.Task) error {
	var payload SyncRecentPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	q.SyncPlatform(ctx, payload.Platform)

	return nil
}

// SyncPlatform refreshes one platform's cache and reports whether it ran
// cleanly.
func (q *Queue) SyncPlatform(ctx context.Context, platform string) bool {
	backend, ok := q.backends[platform]
	if !ok {
		slog.Error("resync for unknown platform", "platform", platform)
		return false
	}

	if err := backend.SyncRecent(ctx); err != nil {
		if errors.Is(err, service.ErrPlatformDisabled) {
			slog.Info("skipping resync of disabled platform", "platform", platform)
			return false
		}
		slog.Error("resync failed", "platform", platform, "error", err)
		return false
	}

	slog.Info("resynced recent posts", "platform", platform)
	return true
}
