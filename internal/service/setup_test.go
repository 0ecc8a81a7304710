package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.Migrate(context.Background(), db))
	return db
}

func testTwitterConfig() config.Twitter {
	return config.Twitter{
		Username:       "crossposter",
		Password:       "hunter2",
		UserEmail:      "ops@example.com",
		LoginTimeout:   time.Second,
		ElementTimeout: 200 * time.Millisecond,
		MaxPosts:       20,
	}
}

// stubSession is a TwitterSessionManager pinned to one state.
type stubSession struct {
	state SessionState
}

func (s *stubSession) Login(ctx context.Context) error { return nil }
func (s *stubSession) InputConfirmationCode(ctx context.Context, code string) error {
	return nil
}
func (s *stubSession) State() SessionState            { return s.state }
func (s *stubSession) Enabled() bool                  { return s.state != SessionDisabled }
func (s *stubSession) AwaitingConfirmationCode() bool { return s.state == SessionAwaitingConfirmationCode }
func (s *stubSession) LoginPath() LoginPath           { return LoginPathNone }
func (s *stubSession) Account() string                { return "crossposter" }

type backendCall struct {
	Op     string
	Target string
	Draft  transfer.Draft
	At     time.Time
}

// fakeBackend records every call and optionally blocks in Publish until
// release is closed.
type fakeBackend struct {
	platform string
	enabled  bool
	err      error
	syncErr  error
	release  chan struct{}
	started  chan struct{}

	mu    sync.Mutex
	calls []backendCall
	syncs int
}

func newFakeBackend(platform string) *fakeBackend {
	return &fakeBackend{platform: platform, enabled: true}
}

func (b *fakeBackend) record(op, target string, draft *transfer.Draft) {
	call := backendCall{Op: op, Target: target, At: time.Now()}
	if draft != nil {
		call.Draft = *draft
	}
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

func (b *fakeBackend) Platform() string { return b.platform }
func (b *fakeBackend) Enabled() bool    { return b.enabled }

func (b *fakeBackend) Publish(ctx context.Context, draft *transfer.Draft) error {
	b.record("publish", "", draft)
	if b.started != nil {
		b.started <- struct{}{}
	}
	if b.release != nil {
		<-b.release
	}
	return b.err
}

func (b *fakeBackend) Reply(ctx context.Context, targetID string, draft *transfer.Draft) error {
	b.record("reply", targetID, draft)
	return b.err
}

func (b *fakeBackend) Delete(ctx context.Context, id string) error {
	b.record("delete", id, nil)
	return b.err
}

func (b *fakeBackend) SyncRecent(ctx context.Context) error {
	b.mu.Lock()
	b.syncs++
	b.mu.Unlock()
	return b.syncErr
}

func (b *fakeBackend) Calls() []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backendCall(nil), b.calls...)
}

func (b *fakeBackend) Syncs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.syncs
}
