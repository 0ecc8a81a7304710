package queue

import (
	"github.com/maheshrc27/crosspost/internal/service"
)

// Queue runs resync tasks against the registered backends.
type Queue struct {
	backends map[string]service.PostingBackend
}

func NewQueue(backends ...service.PostingBackend) *Queue {
	q := &Queue{backends: make(map[string]service.PostingBackend, len(backends))}
	for _, b := range backends {
		q.backends[b.Platform()] = b
	}
	return q
}

const TaskTypeSyncRecent = "sync:recent"

type SyncRecentPayload struct {
	Platform string `json:"platform"`
}
