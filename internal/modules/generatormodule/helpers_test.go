package generatormodule

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/modules/tagindexmodule"
	"github.com/stretchr/testify/require"
)

type mapRepository map[string]string

func (r mapRepository) GetPathByID(assetID string) (string, bool) {
	p, ok := r[assetID]
	return p, ok
}

type stubVision struct {
	tags  []string
	err   error
	mu    sync.Mutex
	calls [][2]string
}

func (v *stubVision) GenerateTags(_ context.Context, path, mediaType string) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, [2]string{path, mediaType})
	return v.tags, v.err
}

type stubProber struct {
	stream *VideoStream
	calls  int
}

func (p *stubProber) ProbeVideo(context.Context, string) (*VideoStream, error) {
	p.calls++
	if p.stream == nil {
		return nil, errors.New("no video stream")
	}
	return p.stream, nil
}

func newIndex(t *testing.T) *tagindexmodule.Store {
	t.Helper()
	return tagindexmodule.NewStore(filepath.Join(t.TempDir(), "tag_index.json"), hclog.NewNullLogger())
}

func uniformImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) string {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func writeJPEG(t *testing.T, path string, img image.Image) string {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	return path
}
