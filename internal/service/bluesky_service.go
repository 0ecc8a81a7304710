package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/bluesky"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

const (
	blueskyFeedFilter = "posts_and_author_threads"
	blueskyFeedLimit  = 100
	blueskyMaxImages  = 4
)

type blueskyAPI interface {
	Login(ctx context.Context, identifier, password string) error
	DID() string
	Handle() string
	GetAuthorFeed(ctx context.Context, actor, filter string, limit int) ([]bluesky.FeedViewPost, error)
	GetPostThread(ctx context.Context, uri string) (*bluesky.PostView, error)
	UploadBlob(ctx context.Context, data []byte, mimeType string) (*bluesky.BlobRef, error)
	CreatePost(ctx context.Context, record bluesky.PostRecord) (*bluesky.StrongRef, error)
	DeletePost(ctx context.Context, uri string) error
}

type BlueskyService interface {
	PostingBackend
	Login(ctx context.Context) error
	Account() string
}

type blueskyService struct {
	cfg     config.Bluesky
	client  blueskyAPI
	posts   repository.BlueskyPostRepository
	images  ImageService
	enabled atomic.Bool
}

func NewBlueskyService(cfg config.Bluesky, client *bluesky.Client, posts repository.BlueskyPostRepository, images ImageService) BlueskyService {
	return newBlueskyService(cfg, client, posts, images)
}

func newBlueskyService(cfg config.Bluesky, client blueskyAPI, posts repository.BlueskyPostRepository, images ImageService) *blueskyService {
	return &blueskyService{cfg: cfg, client: client, posts: posts, images: images}
}

func (s *blueskyService) Platform() string {
	return models.PlatformBluesky
}

func (s *blueskyService) Enabled() bool {
	return s.enabled.Load()
}

func (s *blueskyService) Account() string {
	if h := s.client.Handle(); h != "" {
		return h
	}
	return s.cfg.Username
}

// Login enables the service on success. Missing credentials leave it
// disabled without an error.
func (s *blueskyService) Login(ctx context.Context) error {
	if !s.cfg.Configured() {
		return nil
	}

	if err := s.client.Login(ctx, s.cfg.Username, s.cfg.Password); err != nil {
		slog.Error("bluesky login failed", "username", s.cfg.Username, "error", err)
		return err
	}

	s.enabled.Store(true)
	slog.Info("logged in to bluesky", "username", s.cfg.Username, "did", s.client.DID())
	return nil
}

func (s *blueskyService) SyncRecent(ctx context.Context) error {
	if !s.Enabled() {
		return ErrPlatformDisabled
	}

	feed, err := s.client.GetAuthorFeed(ctx, s.client.DID(), blueskyFeedFilter, blueskyFeedLimit)
	if err != nil {
		return err
	}

	for _, item := range feed {
		record, err := item.Post.DecodeRecord()
		if err != nil {
			slog.Info("skipping undecodable bluesky record", "uri", item.Post.URI, "error", err)
			continue
		}
		postedAt, err := time.Parse(time.RFC3339, record.CreatedAt)
		if err != nil {
			slog.Info("skipping bluesky record with bad createdAt", "uri", item.Post.URI, "error", err)
			continue
		}

		if err := s.posts.Upsert(ctx, &models.BlueskyPost{
			PostID:   item.Post.URI,
			Text:     record.Text,
			PostedAt: postedAt,
		}); err != nil {
			return fmt.Errorf("upsert bluesky post %s: %w", item.Post.URI, err)
		}
	}
	return nil
}

func (s *blueskyService) Publish(ctx context.Context, draft *transfer.Draft) error {
	return s.post(ctx, draft, "")
}

func (s *blueskyService) Reply(ctx context.Context, targetID string, draft *transfer.Draft) error {
	return s.post(ctx, draft, targetID)
}

func (s *blueskyService) Delete(ctx context.Context, uri string) error {
	if !s.Enabled() {
		return ErrPlatformDisabled
	}
	return s.client.DeletePost(ctx, uri)
}

func (s *blueskyService) post(ctx context.Context, draft *transfer.Draft, replyTo string) error {
	if !s.Enabled() {
		return ErrPlatformDisabled
	}
	if len(draft.Files) > blueskyMaxImages {
		return fmt.Errorf("bluesky accepts at most %d images, got %d", blueskyMaxImages, len(draft.Files))
	}

	var reply *bluesky.ReplyRef
	if replyTo != "" {
		parent, err := s.client.GetPostThread(ctx, replyTo)
		if err != nil {
			return fmt.Errorf("resolve reply target: %w", err)
		}
		if reply, err = replyRef(parent); err != nil {
			return err
		}
	}

	var quote *bluesky.StrongRef
	if draft.QuoteOf != "" {
		quoted, err := s.client.GetPostThread(ctx, draft.QuoteOf)
		if err != nil {
			return fmt.Errorf("resolve quote target: %w", err)
		}
		ref := quoted.Ref()
		quote = &ref
	}

	blobs, err := s.uploadImages(ctx, draft.Files)
	if err != nil {
		return err
	}

	ref, err := s.client.CreatePost(ctx, bluesky.PostRecord{
		Text:  draft.Text,
		Reply: reply,
		Embed: buildEmbed(blobs, quote),
	})
	if err != nil {
		return err
	}

	slog.Info("posted to bluesky", "uri", ref.URI)
	return nil
}

// replyRef threads a reply under parent. The root is the parent's own root
// when it is itself a reply.
func replyRef(parent *bluesky.PostView) (*bluesky.ReplyRef, error) {
	record, err := parent.DecodeRecord()
	if err != nil {
		return nil, fmt.Errorf("decode reply target record: %w", err)
	}

	root := parent.Ref()
	if record.Reply != nil && record.Reply.Root.URI != "" {
		root = record.Reply.Root
	}
	return &bluesky.ReplyRef{Root: root, Parent: parent.Ref()}, nil
}

func buildEmbed(blobs []bluesky.BlobRef, quote *bluesky.StrongRef) any {
	switch {
	case quote != nil && len(blobs) > 0:
		return bluesky.NewRecordWithMediaEmbed(*quote, blobs)
	case quote != nil:
		return bluesky.NewRecordEmbed(*quote)
	case len(blobs) > 0:
		return bluesky.NewImagesEmbed(blobs)
	}
	return nil
}

// uploadImages re-encodes and uploads every file concurrently, keeping the
// input order. Re-encoded temp files are always removed.
func (s *blueskyService) uploadImages(ctx context.Context, files []string) ([]bluesky.BlobRef, error) {
	if len(files) == 0 {
		return nil, nil
	}

	blobs := make([]bluesky.BlobRef, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			blob, err := s.uploadImage(ctx, file)
			if err != nil {
				errs[i] = err
				return
			}
			blobs[i] = *blob
		}(i, file)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return blobs, nil
}

func (s *blueskyService) uploadImage(ctx context.Context, file string) (*bluesky.BlobRef, error) {
	encoded, err := s.images.EncodeJPEG(file)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(encoded); err != nil {
			slog.Info(err.Error())
		}
	}()

	data, err := os.ReadFile(encoded)
	if err != nil {
		return nil, err
	}
	return s.client.UploadBlob(ctx, data, "image/jpeg")
}
