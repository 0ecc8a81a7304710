package service

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noiseImage(size int) image.Image {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}

func writePNG(t *testing.T, dir string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, "source.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func jpegSize(t *testing.T, img image.Image, quality int) int64 {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return int64(buf.Len())
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	list, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range list {
		names = append(names, e.Name())
	}
	return names
}

func TestEncodeJPEGStopsUnderLimit(t *testing.T) {
	srcDir, outDir := t.TempDir(), t.TempDir()
	img := noiseImage(128)
	src := writePNG(t, srcDir, img)

	svc := &imageService{dir: outDir, limit: jpegSize(t, img, 60) + 1, minQuality: jpegMinimumQuality}

	path, err := svc.EncodeJPEG(src)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), svc.limit)
	// rejected attempts are removed
	assert.Len(t, entries(t, outDir), 1)
}

func TestEncodeJPEGFirstAttemptFits(t *testing.T) {
	srcDir, outDir := t.TempDir(), t.TempDir()
	src := writePNG(t, srcDir, noiseImage(16))

	path, err := NewImageService(outDir).EncodeJPEG(src)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestEncodeJPEGFailsBelowFloor(t *testing.T) {
	srcDir, outDir := t.TempDir(), t.TempDir()
	src := writePNG(t, srcDir, noiseImage(32))

	svc := &imageService{dir: outDir, limit: 1, minQuality: jpegMinimumQuality}

	_, err := svc.EncodeJPEG(src)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.Empty(t, entries(t, outDir))
}

func TestEncodeJPEGRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(src, []byte("\x00\x00\x00\x18ftypmp42"), 0o644))

	_, err := NewImageService(t.TempDir()).EncodeJPEG(src)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

// 1x1 lossless webp
const tinyWebP = "UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA=="

func TestEncodeJPEGAcceptsWebP(t *testing.T) {
	data, err := base64.StdEncoding.DecodeString(tinyWebP)
	require.NoError(t, err)
	src := filepath.Join(t.TempDir(), "a.webp")
	require.NoError(t, os.WriteFile(src, data, 0o644))

	path, err := NewImageService(t.TempDir()).EncodeJPEG(src)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Width)
	assert.Equal(t, 1, cfg.Height)
}
