// Package tagindexmodule stores per-asset tag sets grouped by layer and
// persists them as a single JSON document.
package tagindexmodule

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	tagerrors "github.com/mantonx/mediatags/internal/errors"
	"github.com/mantonx/mediatags/internal/logger"
	"github.com/mantonx/mediatags/internal/metrics"
	"github.com/mantonx/mediatags/internal/utils"
)

// Store is the tag index. Mutations hold the write lock across the in-memory
// change and the document write, so concurrent writers never lose updates and
// the document on disk is never torn.
type Store struct {
	path   string
	index  document
	logger hclog.Logger
	mu     sync.RWMutex
}

// NewStore loads the document at path. A missing, unreadable or unparsable
// document yields an empty index and the file is left alone until the next
// mutation.
func NewStore(path string, log hclog.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger.OrNull(log).Named("tag-index"),
	}

	idx, err := s.load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("tag index document not found, starting empty", "path", path)
		} else {
			s.logger.Warn("failed to load tag index, starting empty", "path", path, "error", err)
		}
		idx = make(document)
	}
	s.index = idx
	metrics.TagIndexAssets.Set(float64(len(idx)))
	return s
}

// Path returns the document location
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() (document, error) {
	var raw document
	if err := utils.ReadJSON(s.path, &raw); err != nil {
		return nil, err
	}

	idx := make(document, len(raw))
	for assetID, layers := range raw {
		for layerID, rec := range layers {
			if rec == nil {
				continue
			}
			if idx[assetID] == nil {
				idx[assetID] = make(map[string]*Record)
			}
			meta := rec.Meta
			if meta == nil {
				meta = map[string]interface{}{}
			}
			idx[assetID][layerID] = &Record{Tags: normalizeTags(rec.Tags), Meta: meta}
		}
	}
	return idx, nil
}

// persist writes the document. Callers hold the write lock. Failures are
// logged and counted, never returned.
func (s *Store) persist() {
	metrics.TagIndexAssets.Set(float64(len(s.index)))
	if err := utils.WriteJSONAtomic(s.path, s.index); err != nil {
		metrics.TagIndexPersistFailuresTotal.Inc()
		s.logger.Error("failed saving tag index", "error", tagerrors.NewPersistenceError("save", s.path, err))
	}
}

// GetLayersForAsset returns a snapshot of every layer record of the asset.
// Mutating the result does not affect the store.
func (s *Store) GetLayersForAsset(assetID string) map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layers := s.index[assetID]
	result := make(map[string]Record, len(layers))
	for layerID, rec := range layers {
		result[layerID] = copyRecord(rec)
	}
	return result
}

// SetTags replaces the asset's record for layerID with the normalized tags and
// meta. Meta that cannot be encoded as JSON (NaN, channels, ...) is replaced by
// an error entry so it never blocks later writes of the document.
func (s *Store) SetTags(assetID, layerID string, tags []string, meta map[string]interface{}) {
	stored := copyMeta(meta)
	if _, err := json.Marshal(stored); err != nil {
		s.logger.Warn("dropping unencodable meta", "asset", assetID, "layer", layerID, "error", err)
		stored = map[string]interface{}{"error": fmt.Sprintf("unencodable meta: %v", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	layers := s.ensureAsset(assetID)
	layers[layerID] = &Record{
		Tags: normalizeTags(tags),
		Meta: stored,
	}
	metrics.TagIndexMutationsTotal.WithLabelValues("set_tags").Inc()
	s.persist()
}

// AddTags unions the normalized tags into the asset's record for layerID,
// creating an empty record first when absent. Meta is left untouched.
func (s *Store) AddTags(assetID, layerID string, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	layers := s.ensureAsset(assetID)
	rec, ok := layers[layerID]
	if !ok {
		rec = &Record{Tags: []string{}, Meta: map[string]interface{}{}}
		layers[layerID] = rec
	}
	rec.Tags = normalizeTags(append(append([]string{}, rec.Tags...), tags...))
	metrics.TagIndexMutationsTotal.WithLabelValues("add_tags").Inc()
	s.persist()
}

func (s *Store) ensureAsset(assetID string) map[string]*Record {
	layers, ok := s.index[assetID]
	if !ok {
		layers = make(map[string]*Record)
		s.index[assetID] = layers
	}
	return layers
}

// QueryAssets returns the sorted ids of assets matching q. Tag comparison is
// case-insensitive. An empty query matches every indexed asset.
func (s *Store) QueryAssets(q Query) []string {
	anyClause := lowerClause(q.IncludeAny)
	allClause := lowerClause(q.IncludeAll)
	excludeClause := lowerClause(q.Exclude)

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]string, 0)
	for assetID, layers := range s.index {
		if matches(layers, anyClause, allClause, excludeClause) {
			results = append(results, assetID)
		}
	}
	sort.Strings(results)
	return results
}

func matches(layers map[string]*Record, anyClause, allClause, excludeClause map[string]map[string]struct{}) bool {
	for layerID, want := range anyClause {
		if len(want) == 0 {
			continue
		}
		if !intersects(lowerTagSet(layers[layerID]), want) {
			return false
		}
	}
	for layerID, want := range allClause {
		have := lowerTagSet(layers[layerID])
		for tag := range want {
			if _, ok := have[tag]; !ok {
				return false
			}
		}
	}
	for layerID, forbidden := range excludeClause {
		if intersects(lowerTagSet(layers[layerID]), forbidden) {
			return false
		}
	}
	return true
}

// ClearLayer removes layerID from every asset and drops assets left without layers
func (s *Store) ClearLayer(layerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for assetID, layers := range s.index {
		delete(layers, layerID)
		if len(layers) == 0 {
			delete(s.index, assetID)
		}
	}
	metrics.TagIndexMutationsTotal.WithLabelValues("clear_layer").Inc()
	s.persist()
}

// RemoveAsset drops every record of the asset. It reports whether the asset was indexed.
func (s *Store) RemoveAsset(assetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[assetID]; !ok {
		return false
	}
	delete(s.index, assetID)
	metrics.TagIndexMutationsTotal.WithLabelValues("remove_asset").Inc()
	s.persist()
	return true
}

// ListAssets returns the sorted ids of all indexed assets
func (s *Store) ListAssets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns the asset count and the number of records per layer
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Assets:       len(s.index),
		LayerRecords: make(map[string]int),
		DocumentPath: s.path,
	}
	for _, layers := range s.index {
		for layerID := range layers {
			st.LayerRecords[layerID]++
		}
	}
	return st
}

// Reload re-reads the document. On failure the in-memory index is kept and the
// error is returned.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.index = make(document)
			metrics.TagIndexAssets.Set(0)
			return nil
		}
		return tagerrors.NewPersistenceError("reload", s.path, err)
	}
	s.index = idx
	metrics.TagIndexAssets.Set(float64(len(idx)))
	return nil
}

// normalizeTags trims, drops empty values, de-duplicates and sorts. The result
// is never nil so records always serialize a tags array.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func lowerClause(clause map[string][]string) map[string]map[string]struct{} {
	if len(clause) == 0 {
		return nil
	}
	out := make(map[string]map[string]struct{}, len(clause))
	for layerID, tags := range clause {
		set := make(map[string]struct{}, len(tags))
		for _, t := range tags {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				set[t] = struct{}{}
			}
		}
		out[layerID] = set
	}
	return out
}

func lowerTagSet(rec *Record) map[string]struct{} {
	if rec == nil {
		return nil
	}
	set := make(map[string]struct{}, len(rec.Tags))
	for _, t := range rec.Tags {
		set[strings.ToLower(t)] = struct{}{}
	}
	return set
}

func intersects(have, want map[string]struct{}) bool {
	for tag := range want {
		if _, ok := have[tag]; ok {
			return true
		}
	}
	return false
}

func copyRecord(rec *Record) Record {
	if rec == nil {
		return Record{Tags: []string{}, Meta: map[string]interface{}{}}
	}
	return Record{
		Tags: append([]string{}, rec.Tags...),
		Meta: copyMeta(rec.Meta),
	}
}

func copyMeta(meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyMeta(val)
	case map[string]float64:
		out := make(map[string]float64, len(val))
		for k, f := range val {
			out[k] = f
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string{}, val...)
	default:
		return v
	}
}
