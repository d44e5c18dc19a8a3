package tagindexmodule

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "tag_index.json"), hclog.NewNullLogger())
}

func readDocument(t *testing.T, path string) map[string]map[string]Record {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]map[string]Record
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestSetTags_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	s.SetTags("a1", "ai_deep", []string{" emotion:joyful ", "", "palette:warm", "emotion:joyful"},
		map[string]interface{}{"label": "joyful", "confidence": 0.89})

	layers := s.GetLayersForAsset("a1")
	require.Contains(t, layers, "ai_deep")
	assert.Equal(t, []string{"emotion:joyful", "palette:warm"}, layers["ai_deep"].Tags)
	assert.Equal(t, map[string]interface{}{"label": "joyful", "confidence": 0.89}, layers["ai_deep"].Meta)

	// replaces both tags and meta
	s.SetTags("a1", "ai_deep", []string{"needs_review"}, nil)
	layers = s.GetLayersForAsset("a1")
	assert.Equal(t, []string{"needs_review"}, layers["ai_deep"].Tags)
	assert.Empty(t, layers["ai_deep"].Meta)
}

func TestAddTags_UnionIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	s.SetTags("a1", "ai_quick", []string{"portrait"}, map[string]interface{}{"source": "manual"})

	s.AddTags("a1", "ai_quick", []string{"image", " portrait"})
	first := s.GetLayersForAsset("a1")["ai_quick"]
	s.AddTags("a1", "ai_quick", []string{"image", " portrait"})
	second := s.GetLayersForAsset("a1")["ai_quick"]

	assert.Equal(t, []string{"image", "portrait"}, first.Tags)
	assert.Equal(t, first, second)
	assert.Equal(t, "manual", second.Meta["source"], "meta must be untouched")
}

func TestAddTags_CreatesEmptyRecordWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	s.AddTags("a1", "basic", nil)

	layers := s.GetLayersForAsset("a1")
	require.Contains(t, layers, "basic", "absent and empty records are distinct")
	assert.Empty(t, layers["basic"].Tags)

	doc := readDocument(t, s.Path())
	assert.NotNil(t, doc["a1"]["basic"].Tags)
}

func TestGetLayersForAsset_IsSnapshot(t *testing.T) {
	s := newTestStore(t)
	s.SetTags("a1", "L", []string{"x"}, map[string]interface{}{
		"distribution": map[string]interface{}{"a": 0.5},
	})

	snap := s.GetLayersForAsset("a1")
	snap["L"].Tags[0] = "mutated"
	snap["L"].Meta["distribution"].(map[string]interface{})["a"] = 1.0
	delete(snap, "L")

	again := s.GetLayersForAsset("a1")
	assert.Equal(t, []string{"x"}, again["L"].Tags)
	assert.Equal(t, 0.5, again["L"].Meta["distribution"].(map[string]interface{})["a"])
	assert.Empty(t, s.GetLayersForAsset("missing"))
}

func TestQueryAssets(t *testing.T) {
	s := newTestStore(t)
	s.SetTags("a1", "L", []string{"A", "b"}, nil)
	s.SetTags("a2", "L", []string{"a"}, nil)
	s.SetTags("a3", "L", []string{"c"}, nil)
	s.SetTags("a4", "M", []string{"a"}, nil)
	s.SetTags("a3", "M", []string{"skip"}, nil)

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"include any case-insensitive", Query{IncludeAny: map[string][]string{"L": {"a"}}}, []string{"a1", "a2"}},
		{"include all", Query{IncludeAll: map[string][]string{"L": {"a", "B"}}}, []string{"a1"}},
		{"exclude", Query{Exclude: map[string][]string{"L": {"A"}}}, []string{"a3", "a4"}},
		{"empty include_any list is ignored", Query{IncludeAny: map[string][]string{"L": {}}}, []string{"a1", "a2", "a3", "a4"}},
		{"families are ANDed", Query{
			IncludeAny: map[string][]string{"L": {"a", "c"}},
			Exclude:    map[string][]string{"M": {"SKIP"}},
		}, []string{"a1", "a2"}},
		{"layers within a family are ANDed", Query{
			IncludeAny: map[string][]string{"L": {"c"}, "M": {"skip"}},
		}, []string{"a3"}},
		{"missing layer never matches include", Query{IncludeAll: map[string][]string{"M": {"a"}}}, []string{"a4"}},
		{"empty query matches all", Query{}, []string{"a1", "a2", "a3", "a4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.QueryAssets(tt.query))
		})
	}
}

func TestClearLayer_DropsEmptyAssets(t *testing.T) {
	s := newTestStore(t)
	s.SetTags("a1", "ai_quick", []string{"portrait"}, nil)
	s.SetTags("a1", "ai_deep", []string{"emotion:calm"}, nil)
	s.SetTags("a2", "ai_quick", []string{"animal"}, nil)

	s.ClearLayer("ai_quick")

	assert.Equal(t, []string{"a1"}, s.ListAssets())
	assert.NotContains(t, s.GetLayersForAsset("a1"), "ai_quick")

	doc := readDocument(t, s.Path())
	assert.Len(t, doc, 1)
	assert.Contains(t, doc["a1"], "ai_deep")
}

func TestNewStore_FailOpenOnCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tag_index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewStore(path, hclog.NewNullLogger())
	assert.Empty(t, s.ListAssets())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data), "corrupt file is untouched until the next mutation")

	s.AddTags("a1", "basic", []string{"unknown"})
	assert.Contains(t, readDocument(t, path), "a1")
}

func TestNewStore_LoadsExistingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tag_index.json")
	doc := `{"a1": {"ai_quick": {"tags": ["portrait", "image", "portrait"]}}, "a2": {"x": null}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	s := NewStore(path, nil)
	assert.Equal(t, []string{"a1"}, s.ListAssets())
	rec := s.GetLayersForAsset("a1")["ai_quick"]
	assert.Equal(t, []string{"image", "portrait"}, rec.Tags)
	assert.NotNil(t, rec.Meta)
}

func TestPersist_PrettyPrinted(t *testing.T) {
	s := newTestStore(t)
	s.SetTags("a1", "basic", []string{"image"}, nil)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "{\n  \"a1\": {\n    \"basic\": {")
}

func TestPersistFailure_IsNotFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	// parent of the document is a regular file, so every write fails
	s := NewStore(filepath.Join(blocker, "tag_index.json"), hclog.NewNullLogger())
	assert.NotPanics(t, func() { s.SetTags("a1", "L", []string{"x"}, nil) })
	assert.Equal(t, []string{"x"}, s.GetLayersForAsset("a1")["L"].Tags)
}

func TestSetTags_UnencodableMetaDoesNotBlockPersistence(t *testing.T) {
	s := newTestStore(t)

	s.SetTags("good1", "basic", []string{"image"}, nil)
	s.SetTags("bad", "ai_deep", []string{"emotion:calm"}, map[string]interface{}{"score": math.NaN()})
	s.SetTags("good2", "basic", []string{"video"}, nil)
	s.AddTags("good1", "basic", []string{"later"})

	meta := s.GetLayersForAsset("bad")["ai_deep"].Meta
	assert.Contains(t, meta, "error")
	assert.NotContains(t, meta, "score")

	reopened := NewStore(s.Path(), hclog.NewNullLogger())
	assert.Equal(t, []string{"bad", "good1", "good2"}, reopened.ListAssets())
	assert.Equal(t, []string{"image", "later"}, reopened.GetLayersForAsset("good1")["basic"].Tags)
	assert.Equal(t, []string{"emotion:calm"}, reopened.GetLayersForAsset("bad")["ai_deep"].Tags)
}

func TestConcurrentMutations_NoLostUpdates(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				s.AddTags("shared", "L", []string{fmt.Sprintf("w%d-%d", w, i)})
				_ = s.QueryAssets(Query{IncludeAny: map[string][]string{"L": {"w0-0"}}})
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, s.GetLayersForAsset("shared")["L"].Tags, 80)
	assert.Len(t, readDocument(t, s.Path())["shared"]["L"].Tags, 80)
}

func TestRemoveAssetStatsReload(t *testing.T) {
	s := newTestStore(t)
	s.SetTags("a1", "L", []string{"x"}, nil)
	s.SetTags("a1", "M", []string{"y"}, nil)
	s.SetTags("a2", "L", []string{"z"}, nil)

	st := s.Stats()
	assert.Equal(t, 2, st.Assets)
	assert.Equal(t, map[string]int{"L": 2, "M": 1}, st.LayerRecords)

	assert.True(t, s.RemoveAsset("a2"))
	assert.False(t, s.RemoveAsset("a2"))

	// another process rewrote the document
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"b1": {"L": {"tags": ["q"], "meta": {}}}}`), 0644))
	require.NoError(t, s.Reload())
	assert.Equal(t, []string{"b1"}, s.ListAssets())

	require.NoError(t, os.WriteFile(s.Path(), []byte(`garbage`), 0644))
	assert.Error(t, s.Reload())
	assert.Equal(t, []string{"b1"}, s.ListAssets(), "failed reload keeps the current index")
}
