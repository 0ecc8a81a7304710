package queue

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"

	"github.com/hibiken/asynq"
)

func EnqueueSync(asynqClient *asynq.Client, payload SyncRecentPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeSyncRecent, taskPayload, asynq.MaxRetry(0))

	_, err = asynqClient.Enqueue(task)
	if err != nil {
		return err
	}

	log.Printf("Task enqueued: %+v", payload)
	return nil
}

// AsynqDispatcher hands resyncs to the asynq worker.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) Resync(ctx context.Context, platforms ...string) {
	for _, p := range platforms {
		if err := EnqueueSync(d.client, SyncRecentPayload{Platform: p}); err != nil {
			slog.Error("enqueue resync", "platform", p, "error", err)
		}
	}
}

// LocalDispatcher runs resyncs in detached goroutines when no broker is
// configured.
type LocalDispatcher struct {
	q *Queue
}

func NewLocalDispatcher(q *Queue) *LocalDispatcher {
	return &LocalDispatcher{q: q}
}

func (d *LocalDispatcher) Resync(ctx context.Context, platforms ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range platforms {
		go d.q.SyncPlatform(ctx, p)
	}
}
