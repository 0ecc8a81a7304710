package service

import (
	"context"

	"github.com/maheshrc27/crosspost/internal/transfer"
)

// PostingBackend is one service the composition can fan out to.
type PostingBackend interface {
	Platform() string
	Enabled() bool
	Publish(ctx context.Context, draft *transfer.Draft) error
	Reply(ctx context.Context, targetID string, draft *transfer.Draft) error
	Delete(ctx context.Context, id string) error
	SyncRecent(ctx context.Context) error
}
