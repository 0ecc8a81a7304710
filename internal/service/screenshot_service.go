package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type ScreenshotService interface {
	Enabled() bool
	// Save writes png as {dir}/{prefix}-{unix ms}.png and returns the path.
	Save(ctx context.Context, prefix string, png []byte) (string, error)
}

type screenshotService struct {
	dir   string
	store ObjectStore
	now   func() time.Time
}

// NewScreenshotService returns a disabled service when dir is empty. store
// may be nil.
func NewScreenshotService(dir string, store ObjectStore) ScreenshotService {
	return &screenshotService{dir: dir, store: store, now: time.Now}
}

func (s *screenshotService) Enabled() bool {
	return s.dir != ""
}

func (s *screenshotService) Save(ctx context.Context, prefix string, png []byte) (string, error) {
	if !s.Enabled() {
		return "", ErrScreenshotsDisabled
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	name := fmt.Sprintf("%s-%d.png", prefix, s.now().UnixMilli())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if s.store != nil {
		if err := s.store.Upload(ctx, "screenshots/"+name, png, "image/png"); err != nil {
			slog.Error("archive screenshot", "path", path, "error", err)
		}
	}

	return path, nil
}
