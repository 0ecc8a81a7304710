package service

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "golang.org/x/image/webp"
)

const (
	BlobSizeLimit      = 1_000_000
	jpegStartQuality   = 100
	jpegQualityStep    = 5
	jpegMinimumQuality = 10
)

type ImageService interface {
	// EncodeJPEG re-encodes src as a JPEG strictly smaller than the blob size
	// limit and returns the temp file path. The caller removes the file.
	EncodeJPEG(src string) (string, error)
}

type imageService struct {
	dir        string
	limit      int64
	minQuality int
}

func NewImageService(dir string) ImageService {
	return &imageService{dir: dir, limit: BlobSizeLimit, minQuality: jpegMinimumQuality}
}

func (s *imageService) EncodeJPEG(src string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	img, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnsupportedMedia, filepath.Base(src), err)
	}

	for quality := jpegStartQuality; quality >= s.minQuality; quality -= jpegQualityStep {
		path, size, err := s.encode(img, quality)
		if err != nil {
			return "", err
		}
		if size < s.limit {
			slog.Info("re-encoded image", "source_format", format, "quality", quality, "size", size)
			return path, nil
		}
		if err := os.Remove(path); err != nil {
			slog.Info(err.Error())
		}
	}

	return "", fmt.Errorf("%w: %s", ErrImageTooLarge, filepath.Base(src))
}

// encode writes one attempt to a fresh temp file.
func (s *imageService) encode(img image.Image, quality int) (string, int64, error) {
	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", 0, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", 0, err
	}

	path := filepath.Join(s.dir, id+".jpeg")
	out, err := os.Create(path)
	if err != nil {
		slog.Info(err.Error())
		return "", 0, err
	}

	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: quality}); err != nil {
		out.Close()
		os.Remove(path)
		return "", 0, fmt.Errorf("encode jpeg at quality %d: %w", quality, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, info.Size(), nil
}
