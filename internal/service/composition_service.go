package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var tweetIDPattern = regexp.MustCompile(`^\d+$`)

func ValidTweetID(id string) bool {
	return tweetIDPattern.MatchString(id)
}

// Resyncer refreshes the recent-post caches in the background. It never
// reports failures to the caller.
type Resyncer interface {
	Resync(ctx context.Context, platforms ...string)
}

type PostCache interface {
	Delete(ctx context.Context, id string) (bool, error)
}

type CompositionService interface {
	Compose(ctx context.Context, c *transfer.Composition) (transfer.Results, error)
	Delete(ctx context.Context, target transfer.Target) (transfer.Results, error)
	// StageUploads writes type-checked uploads to the upload directory and
	// returns their absolute paths.
	StageUploads(files []*multipart.FileHeader) ([]string, error)
}

type compositionService struct {
	backends  map[string]PostingBackend
	caches    map[string]PostCache
	resync    Resyncer
	uploadDir string
}

func NewCompositionService(backends []PostingBackend, caches map[string]PostCache, resync Resyncer, uploadDir string) CompositionService {
	byPlatform := make(map[string]PostingBackend, len(backends))
	for _, b := range backends {
		byPlatform[b.Platform()] = b
	}
	return &compositionService{
		backends:  byPlatform,
		caches:    caches,
		resync:    resync,
		uploadDir: uploadDir,
	}
}

func (s *compositionService) Compose(ctx context.Context, c *transfer.Composition) (transfer.Results, error) {
	defer removeFiles(c.Files)

	if strings.TrimSpace(c.Text) == "" && len(c.Files) == 0 {
		return nil, ErrEmptyComposition
	}
	for _, id := range []string{c.Reply.TwitterID, c.Quote.TwitterID} {
		if id != "" && !ValidTweetID(id) {
			return nil, ErrInvalidTweetID
		}
	}

	var platforms []string
	if c.Services.Twitter {
		platforms = append(platforms, models.PlatformTwitter)
	}
	if c.Services.Bluesky {
		platforms = append(platforms, models.PlatformBluesky)
	}
	if len(platforms) == 0 {
		return nil, ErrNoServiceSelected
	}

	results := make(transfer.Results, len(platforms))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, platform := range platforms {
		backend, ok := s.backends[platform]
		if !ok || !backend.Enabled() {
			results[platform] = transfer.PlatformResult{Error: ErrPlatformDisabled.Error()}
			continue
		}

		wg.Add(1)
		go func(platform string, backend PostingBackend) {
			defer wg.Done()

			draft := &transfer.Draft{
				Text:    c.Text,
				Files:   c.Files,
				QuoteOf: targetFor(c.Quote, platform),
			}

			var err error
			if reply := targetFor(c.Reply, platform); reply != "" {
				err = backend.Reply(ctx, reply, draft)
			} else {
				err = backend.Publish(ctx, draft)
			}

			mu.Lock()
			results[platform] = resultOf(err)
			mu.Unlock()

			if err != nil {
				slog.Error("publish failed", "platform", platform, "error", err)
			}
		}(platform, backend)
	}
	wg.Wait()

	s.resyncEnabled()
	return results, nil
}

// Delete removes each given post live and then drops its cached row. A
// cache miss is logged, not reported.
func (s *compositionService) Delete(ctx context.Context, target transfer.Target) (transfer.Results, error) {
	if target.Empty() {
		return nil, ErrNothingToDelete
	}
	if target.TwitterID != "" && !ValidTweetID(target.TwitterID) {
		return nil, ErrInvalidTweetID
	}

	ids := map[string]string{}
	if target.TwitterID != "" {
		ids[models.PlatformTwitter] = target.TwitterID
	}
	if target.BlueskyID != "" {
		ids[models.PlatformBluesky] = target.BlueskyID
	}

	results := make(transfer.Results, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for platform, id := range ids {
		backend, ok := s.backends[platform]
		if !ok || !backend.Enabled() {
			results[platform] = transfer.PlatformResult{Error: ErrPlatformDisabled.Error()}
			continue
		}

		wg.Add(1)
		go func(platform, id string, backend PostingBackend) {
			defer wg.Done()

			err := backend.Delete(ctx, id)
			if err == nil {
				err = s.dropCached(ctx, platform, id)
			} else {
				slog.Error("delete failed", "platform", platform, "id", id, "error", err)
			}

			mu.Lock()
			results[platform] = resultOf(err)
			mu.Unlock()
		}(platform, id, backend)
	}
	wg.Wait()

	return results, nil
}

func (s *compositionService) dropCached(ctx context.Context, platform, id string) error {
	cache, ok := s.caches[platform]
	if !ok {
		return nil
	}
	deleted, err := cache.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("remove cached post: %w", err)
	}
	if !deleted {
		slog.Info("no cached row for deleted post", "platform", platform, "id", id)
	}
	return nil
}

// The resync outlives the request and must not carry its context.
func (s *compositionService) resyncEnabled() {
	if s.resync == nil {
		return
	}
	var platforms []string
	for platform, backend := range s.backends {
		if backend.Enabled() {
			platforms = append(platforms, platform)
		}
	}
	if len(platforms) > 0 {
		s.resync.Resync(context.Background(), platforms...)
	}
}

var allowedUploadTypes = map[string]struct{}{
	"jpg": {}, "png": {}, "gif": {}, "webp": {}, "mp4": {}, "mov": {},
}

func (s *compositionService) StageUploads(files []*multipart.FileHeader) ([]string, error) {
	dir, err := filepath.Abs(s.uploadDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	for _, file := range files {
		path, err := stageFile(dir, file)
		if err != nil {
			removeFiles(paths)
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func stageFile(dir string, file *multipart.FileHeader) (string, error) {
	fileContent, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("error opening file: %w", err)
	}
	defer fileContent.Close()

	fileBytes, err := io.ReadAll(fileContent)
	if err != nil {
		return "", fmt.Errorf("error reading file content: %w", err)
	}

	fileType, err := filetype.Match(fileBytes)
	if err != nil || fileType == types.Unknown {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, file.Filename)
	}
	if _, ok := allowedUploadTypes[fileType.Extension]; !ok {
		return "", fmt.Errorf("%w: %s is %s", ErrUnsupportedMedia, file.Filename, fileType.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	path := filepath.Join(dir, id+"."+fileType.Extension)
	if err := os.WriteFile(path, fileBytes, 0o600); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return path, nil
}

func targetFor(t transfer.Target, platform string) string {
	switch platform {
	case models.PlatformTwitter:
		return t.TwitterID
	case models.PlatformBluesky:
		return t.BlueskyID
	}
	return ""
}

func resultOf(err error) transfer.PlatformResult {
	if err != nil {
		return transfer.PlatformResult{Error: err.Error()}
	}
	return transfer.PlatformResult{OK: true}
}

func removeFiles(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Info(err.Error())
		}
	}
}
