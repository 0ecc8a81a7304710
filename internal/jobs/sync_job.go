package job

import (
	"context"
	"log/slog"
	"sync"

	"github.com/maheshrc27/crosspost/internal/service"
)

type platformSyncer interface {
	SyncPlatform(ctx context.Context, platform string) bool
}

// SyncJob periodically refreshes every enabled backend's recent-post cache.
type SyncJob struct {
	q        platformSyncer
	backends []service.PostingBackend
}

func NewSyncJob(q platformSyncer, backends ...service.PostingBackend) *SyncJob {
	return &SyncJob{q: q, backends: backends}
}

func (j *SyncJob) SyncRecent() {
	ctx := context.Background()

	var wg sync.WaitGroup

	concurrencyLimit := 2
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, b := range j.backends {
		if !b.Enabled() {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(platform string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if !j.q.SyncPlatform(ctx, platform) {
				slog.Info("Unable to sync recent posts", "platform", platform)
			}
		}(b.Platform())
	}

	wg.Wait()
}
