package utils

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaKind(t *testing.T) {
	assert.Equal(t, KindImage, MediaKind("/photos/Portrait.JPG"))
	assert.Equal(t, KindVideo, MediaKind("clip.mkv"))
	assert.Equal(t, KindAudio, MediaKind("song.flac"))
	assert.Equal(t, "", MediaKind("notes.txt"))

	assert.True(t, IsMediaFile("a/b/c.webp"))
	assert.False(t, IsMediaFile("a/b/.hidden.jpg"))
	assert.False(t, IsMediaFile("a/b/c.vtt"))
}

func TestWriteJSONAtomic_IndentedAndReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "doc.json")

	require.NoError(t, WriteJSONAtomic(path, map[string][]string{"a": {"x"}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": [\n    \"x\"\n  ]\n}\n", string(data))

	require.NoError(t, WriteJSONAtomic(path, map[string]int{"b": 1}))
	var out map[string]int
	require.NoError(t, ReadJSON(path, &out))
	assert.Equal(t, map[string]int{"b": 1}, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteJSONAtomic_NoHTMLEscaping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	require.NoError(t, WriteJSONAtomic(path, map[string][]string{"a": {"genre:r&b", "<live>"}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"genre:r&b"`)
	assert.Contains(t, string(data), `"<live>"`)
	assert.NotContains(t, string(data), `\u0026`)
}

func TestWriteJSONAtomic_EncodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	assert.Error(t, WriteJSONAtomic(path, map[string]interface{}{"c": make(chan int)}))
	assert.False(t, FileExists(path))
}

func TestCalculateFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	sum, err := CalculateFileHash(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)

	_, err = CalculateFileHash(path + ".missing")
	assert.Error(t, err)
}

func TestPathResolver(t *testing.T) {
	root := t.TempDir()
	pr := NewPathResolver(root)

	p, err := pr.ResolveUserPath("tag_index.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "tag_index.json"), p)

	_, err = pr.ResolveUserPath("../outside.json")
	assert.Error(t, err)

	_, err = pr.ResolveUserPath("")
	assert.Error(t, err)

	abs := filepath.Join(root, "x", "..", "y.json")
	p, err = pr.ResolveUserPath(abs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "y.json"), p)
}

func TestAssetIDForPath_Deterministic(t *testing.T) {
	a := AssetIDForPath("/media/a/../b.jpg")
	b := AssetIDForPath("/media/b.jpg")
	assert.Equal(t, a, b)
	assert.True(t, IsValidUUID(a))
	assert.NotEqual(t, a, AssetIDForPath("/media/c.jpg"))
}

func TestWorkerPool_RunsAllWork(t *testing.T) {
	wp := NewWorkerPool(3)
	wp.Start()
	defer wp.Stop()

	var count int64
	for i := 0; i < 50; i++ {
		require.NoError(t, wp.Submit(context.Background(), func() {
			atomic.AddInt64(&count, 1)
		}))
	}
	wp.Wait()
	assert.Equal(t, int64(50), atomic.LoadInt64(&count))
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	wp := NewWorkerPool(1)
	assert.ErrorIs(t, wp.Submit(context.Background(), func() {}), ErrPoolStopped)

	wp.Start()
	wp.Stop()
	assert.ErrorIs(t, wp.Submit(context.Background(), func() {}), ErrPoolStopped)
}

func TestWorkerPool_SubmitHonoursContext(t *testing.T) {
	wp := NewWorkerPool(1)
	wp.Start()
	defer wp.Stop()

	release := make(chan struct{})
	// occupy the worker and fill the queue
	for i := 0; i < 3; i++ {
		require.NoError(t, wp.Submit(context.Background(), func() { <-release }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := wp.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}
