package generatormodule

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/modules/layermodule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHeuristic(t *testing.T, deps Dependencies, assetID string) []string {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = hclog.NewNullLogger()
	}
	gen, err := NewHeuristicGenerator(layermodule.Descriptor{ID: LayerAIQuick}, deps)
	require.NoError(t, err)
	require.NoError(t, gen.ProcessAsset(context.Background(), assetID))
	return deps.Index.GetLayersForAsset(assetID)[LayerAIQuick].Tags
}

func TestHeuristic_FilenameAndImageSignals(t *testing.T) {
	dir := t.TempDir()
	path := writeJPEG(t, filepath.Join(dir, "Portrait_Dog.jpg"), uniformImage(40, 30, color.NRGBA{200, 100, 50, 255}))

	tags := runHeuristic(t, Dependencies{Index: newIndex(t), Repository: mapRepository{"a1": path}}, "a1")

	assert.Subset(t, tags, []string{"portrait", "animal", "image", "format:jpeg", "kind:image",
		"resolution:40x30", "orientation:landscape"})
	assert.NotContains(t, tags, TagUnknown)
}

func TestHeuristic_DetectsImageByContent(t *testing.T) {
	dir := t.TempDir()
	path := writeJPEG(t, filepath.Join(dir, "PortraitAsset.bin"), uniformImage(64, 128, color.NRGBA{120, 45, 200, 255}))
	prober := &stubProber{}

	tags := runHeuristic(t, Dependencies{Index: newIndex(t), Repository: mapRepository{"img-001": path}, Prober: prober}, "img-001")

	assert.Subset(t, tags, []string{"image", "orientation:portrait", "format:jpeg", "resolution:64x128", "portrait"})
	assert.NotContains(t, tags, TagUnknown)
	assert.Equal(t, 0, prober.calls, "decoded images are not probed as video")
}

func TestHeuristic_NonMediaFileIsUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.data")
	require.NoError(t, os.WriteFile(path, []byte("plain text content"), 0644))

	tags := runHeuristic(t, Dependencies{Index: newIndex(t), Repository: mapRepository{"doc-1": path}, Prober: &stubProber{}}, "doc-1")

	assert.Equal(t, []string{TagUnknown}, tags)
}

func TestHeuristic_MissingPathIsUnknown(t *testing.T) {
	idx := newIndex(t)
	tags := runHeuristic(t, Dependencies{Index: idx, Repository: mapRepository{}}, "ghost")
	assert.Equal(t, []string{TagUnknown}, tags)

	tags = runHeuristic(t, Dependencies{Index: idx}, "no-repo")
	assert.Equal(t, []string{TagUnknown}, tags)
}

func TestHeuristic_VideoTagsFromProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movie_capture.bin")
	require.NoError(t, os.WriteFile(path, []byte("video data placeholder"), 0644))

	duration := 12.5
	prober := &stubProber{stream: &VideoStream{Width: 1920, Height: 1080, Duration: &duration, Codec: "h264"}}
	vision := &stubVision{tags: []string{"scene:indoor"}}

	tags := runHeuristic(t, Dependencies{
		Index:      newIndex(t),
		Repository: mapRepository{"vid-01": path},
		Prober:     prober,
		Vision:     vision,
	}, "vid-01")

	assert.Subset(t, tags, []string{"video", "resolution:1920x1080", "orientation:landscape", "duration:short", "codec:h264", "scene:indoor"})
	require.Len(t, vision.calls, 1)
	assert.Equal(t, "video", vision.calls[0][1])
}

func TestHeuristic_VisionTagsMergedVerbatim(t *testing.T) {
	path := writePNG(t, filepath.Join(t.TempDir(), "dog.bin"), uniformImage(128, 64, color.NRGBA{10, 200, 150, 255}))
	vision := &stubVision{tags: []string{"clip:dog", "confidence:high", ""}}

	tags := runHeuristic(t, Dependencies{
		Index:      newIndex(t),
		Repository: mapRepository{"img-vision": path},
		Vision:     vision,
	}, "img-vision")

	assert.Subset(t, tags, []string{"clip:dog", "confidence:high", "animal", "image", "format:png"})
	require.Len(t, vision.calls, 1)
	assert.Equal(t, path, vision.calls[0][0])
	assert.Equal(t, "image", vision.calls[0][1])
}

func TestHeuristic_VisionFailureIgnored(t *testing.T) {
	path := writePNG(t, filepath.Join(t.TempDir(), "scenery.png"), uniformImage(8, 8, color.NRGBA{1, 2, 3, 255}))
	vision := &stubVision{err: errors.New("model offline")}

	tags := runHeuristic(t, Dependencies{Index: newIndex(t), Repository: mapRepository{"a": path}, Vision: vision}, "a")

	assert.Subset(t, tags, []string{"landscape", "image", "orientation:square"})
}

func TestHeuristic_AlphaAndGrayscale(t *testing.T) {
	dir := t.TempDir()
	alpha := writePNG(t, filepath.Join(dir, "alpha.png"), uniformImage(4, 4, color.NRGBA{10, 20, 30, 128}))

	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	grayPath := writePNG(t, filepath.Join(dir, "gray.png"), gray)

	idx := newIndex(t)
	repo := mapRepository{"alpha": alpha, "gray": grayPath}

	assert.Contains(t, runHeuristic(t, Dependencies{Index: idx, Repository: repo}, "alpha"), "has_alpha")
	grayTags := runHeuristic(t, Dependencies{Index: idx, Repository: repo}, "gray")
	assert.Contains(t, grayTags, "grayscale")
	assert.NotContains(t, grayTags, "has_alpha")
}

// writeGrayAlphaPNG writes an 8-bit grey+alpha PNG, which image/png cannot encode
func writeGrayAlphaPNG(t *testing.T, path string, w, h int) string {
	t.Helper()

	var raw bytes.Buffer
	for y := 0; y < h; y++ {
		raw.WriteByte(0) // filter: none
		for x := 0; x < w; x++ {
			raw.Write([]byte{0x80, 0xc0})
		}
	}
	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	_, err := zw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(h))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 4 // grey + alpha

	var out bytes.Buffer
	out.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(typ string, data []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(data)))
		out.Write(n[:])
		out.WriteString(typ)
		out.Write(data)
		crc := crc32.NewIEEE()
		crc.Write([]byte(typ))
		crc.Write(data)
		binary.BigEndian.PutUint32(n[:], crc.Sum32())
		out.Write(n[:])
	}
	chunk("IHDR", ihdr)
	chunk("IDAT", idat.Bytes())
	chunk("IEND", nil)

	require.NoError(t, os.WriteFile(path, out.Bytes(), 0644))
	return path
}

func TestHeuristic_GrayAlphaPNGIsGrayscale(t *testing.T) {
	path := writeGrayAlphaPNG(t, filepath.Join(t.TempDir(), "shadow.png"), 3, 2)

	tags := runHeuristic(t, Dependencies{Index: newIndex(t), Repository: mapRepository{"la": path}}, "la")

	assert.Subset(t, tags, []string{"image", "format:png", "has_alpha", "grayscale", "orientation:landscape"})
}

// id3v23 builds a minimal ID3v2.3 tag carrying a single TCON frame
func id3v23(genre string) []byte {
	body := append([]byte{0x00}, []byte(genre)...)
	frame := append([]byte("TCON"), 0, 0, 0, byte(len(body)), 0, 0)
	frame = append(frame, body...)

	tag := append([]byte("ID3"), 0x03, 0x00, 0x00, 0, 0, 0, byte(len(frame)))
	tag = append(tag, frame...)
	return append(tag, make([]byte, 32)...)
}

func TestHeuristic_AudioMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")
	require.NoError(t, os.WriteFile(path, id3v23("Jazz"), 0644))
	prober := &stubProber{}

	tags := runHeuristic(t, Dependencies{Index: newIndex(t), Repository: mapRepository{"song": path}, Prober: prober}, "song")

	assert.Subset(t, tags, []string{"audio", "format:mp3", "genre:jazz", "kind:audio"})
	assert.Equal(t, 0, prober.calls)
}

func TestHeuristic_UnionsIntoExistingRecord(t *testing.T) {
	idx := newIndex(t)
	idx.SetTags("a", LayerAIQuick, []string{"manual"}, map[string]interface{}{"by": "user"})

	tags := runHeuristic(t, Dependencies{Index: idx, Repository: mapRepository{}}, "a")

	assert.Equal(t, []string{"manual", TagUnknown}, tags)
	assert.Equal(t, "user", idx.GetLayersForAsset("a")[LayerAIQuick].Meta["by"])
}

func TestNewHeuristicGenerator(t *testing.T) {
	_, err := NewHeuristicGenerator(layermodule.Descriptor{ID: "basic"}, Dependencies{})
	assert.Error(t, err)

	idx := newIndex(t)
	gen, err := NewHeuristicGenerator(layermodule.Descriptor{}, Dependencies{Index: idx})
	require.NoError(t, err)
	require.NoError(t, gen.ProcessAsset(context.Background(), "x"))
	assert.Contains(t, idx.GetLayersForAsset("x"), LayerAIQuick, "empty descriptor id writes to ai_quick")
}

func TestOrientationAndDurationBuckets(t *testing.T) {
	assert.Equal(t, "square", orientation(10, 10))
	assert.Equal(t, "landscape", orientation(20, 10))
	assert.Equal(t, "portrait", orientation(10, 20))

	tests := map[float64]string{
		0:     "duration:micro",
		4.99:  "duration:micro",
		5:     "duration:short",
		29.9:  "duration:short",
		30:    "duration:medium",
		119.9: "duration:medium",
		120:   "duration:long",
	}
	for seconds, want := range tests {
		assert.Equal(t, want, durationBucket(seconds), "seconds=%v", seconds)
	}
}
