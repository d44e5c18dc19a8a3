package scanprofilemodule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	tagerrors "github.com/mantonx/mediatags/internal/errors"
	"github.com/mantonx/mediatags/internal/events"
	"github.com/mantonx/mediatags/internal/logger"
	"github.com/mantonx/mediatags/internal/metrics"
	"github.com/mantonx/mediatags/internal/modules/generatormodule"
	"github.com/mantonx/mediatags/internal/modules/layermodule"
	"github.com/mantonx/mediatags/internal/modules/tagindexmodule"
	"github.com/mantonx/mediatags/internal/utils"
)

// TagIndex is the index surface the service needs: generator writes plus target queries
type TagIndex interface {
	generatormodule.TagIndex
	QueryAssets(q tagindexmodule.Query) []string
}

// LayerRegistry resolves layer descriptors
type LayerRegistry interface {
	GetLayer(layerID string) (layermodule.Descriptor, bool)
}

// AssetLister lists catalog assets by media kind for asset_type filters
type AssetLister interface {
	ListAssetIDsByKind(ctx context.Context, kinds []string) ([]string, error)
}

// Options configure a Service
type Options struct {
	ProfilesPath string
	Registry     LayerRegistry
	Index        TagIndex

	// Factories defaults to generatormodule.DefaultFactories()
	Factories *generatormodule.FactoryRegistry
	// Deps are handed to every generator factory. A nil Deps.Index is filled from Index.
	Deps generatormodule.Dependencies

	Assets AssetLister
	Guard  *LoadGuard

	// Workers above one fan each layer's targets out over a worker pool
	Workers int

	Bus    *events.Bus
	Logger hclog.Logger
}

// Service owns the scan profiles document and runs profiles
type Service struct {
	path      string
	registry  LayerRegistry
	index     TagIndex
	factories *generatormodule.FactoryRegistry
	deps      generatormodule.Dependencies
	assets    AssetLister
	guard     *LoadGuard
	workers   int
	bus       *events.Bus
	logger    hclog.Logger

	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewService loads the profiles document, seeding or migrating it to the
// built-in defaults when it is missing, unparsable or carries the legacy
// deep_pass fingerprint.
func NewService(opts Options) (*Service, error) {
	if opts.ProfilesPath == "" {
		return nil, tagerrors.NewConfigurationError("profiles path is required", "scan_profiles", nil)
	}
	if opts.Registry == nil || opts.Index == nil {
		return nil, tagerrors.NewConfigurationError("layer registry and tag index are required", "scan_profiles", nil)
	}

	factories := opts.Factories
	if factories == nil {
		factories = generatormodule.DefaultFactories()
	}
	deps := opts.Deps
	if deps.Index == nil {
		deps.Index = opts.Index
	}
	log := logger.OrNull(opts.Logger).Named("scan-profiles")
	if deps.Logger == nil {
		deps.Logger = log
	}

	s := &Service{
		path:      opts.ProfilesPath,
		registry:  opts.Registry,
		index:     opts.Index,
		factories: factories,
		deps:      deps,
		assets:    opts.Assets,
		guard:     opts.Guard,
		workers:   opts.Workers,
		bus:       opts.Bus,
		logger:    log,
	}
	s.ensureProfilesFile()
	return s, nil
}

// Path returns the location of the profiles document
func (s *Service) Path() string {
	return s.path
}

func (s *Service) readDocument() (map[string]Profile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var profiles map[string]Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if profiles == nil {
		return nil, fmt.Errorf("profiles document %s is not an object", s.path)
	}
	return profiles, nil
}

func (s *Service) ensureProfilesFile() {
	s.mu.Lock()
	profiles, err := s.readDocument()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("seeding default scan profiles", "path", s.path)
		profiles = s.writeDefaultsLocked()
	case err != nil:
		s.logger.Warn("profiles document unreadable, restoring defaults", "path", s.path, "error", err)
		profiles = s.writeDefaultsLocked()
	case hasLegacyFingerprint(profiles):
		s.logger.Info("updating scan profiles to latest defaults", "path", s.path)
		profiles = s.writeDefaultsLocked()
	default:
		s.profiles = profiles
	}
	s.mu.Unlock()

	s.publishLoaded(len(profiles))
}

// writeDefaultsLocked caches the defaults and persists them. A failed write
// leaves the defaults in memory. Callers hold s.mu.
func (s *Service) writeDefaultsLocked() map[string]Profile {
	defaults := DefaultProfiles()
	s.profiles = defaults
	if err := utils.WriteJSONAtomic(s.path, defaults); err != nil {
		s.logger.Error("failed to write default scan profiles", "path", s.path, "error", err)
	}
	return defaults
}

// publishLoaded runs outside s.mu since bus handlers may read profiles
func (s *Service) publishLoaded(count int) {
	s.publish(events.EventProfilesLoaded, "scan profiles loaded", map[string]interface{}{
		"count": count,
	})
}

// Reload re-reads the profiles document. A missing document or one carrying
// the legacy fingerprint is rewritten with the defaults. An unparsable document
// keeps the cached profiles and returns an error, so a half-written edit never
// discards the user's profiles. The lock is held from read to cache update so
// a concurrent SaveProfile is never overwritten by an older document.
func (s *Service) Reload() error {
	s.mu.Lock()
	profiles, err := s.readDocument()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		profiles = s.writeDefaultsLocked()
	case err != nil:
		s.mu.Unlock()
		return tagerrors.NewPersistenceError("reload", s.path, err)
	case hasLegacyFingerprint(profiles):
		profiles = s.writeDefaultsLocked()
	default:
		s.profiles = profiles
	}
	s.mu.Unlock()

	s.publishLoaded(len(profiles))
	return nil
}

// ListProfiles returns a copy of all profiles keyed by id
func (s *Service) ListProfiles() map[string]Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Profile, len(s.profiles))
	for id, p := range s.profiles {
		out[id] = copyProfile(p)
	}
	return out
}

// ProfileIDs returns the sorted profile ids
func (s *Service) ProfileIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetProfile returns a copy of one profile
func (s *Service) GetProfile(profileID string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[profileID]
	if !ok {
		return Profile{}, false
	}
	return copyProfile(p), true
}

// SaveProfile creates or replaces a profile and persists the document
func (s *Service) SaveProfile(profileID string, profile Profile) error {
	if profileID == "" {
		return tagerrors.NewValidationError("profile id is required", "id")
	}
	for _, layerID := range profile.Layers {
		if layerID == "" {
			return tagerrors.NewValidationError("layer ids must not be empty", "layers")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]Profile, len(s.profiles)+1)
	for id, p := range s.profiles {
		next[id] = p
	}
	next[profileID] = copyProfile(profile)

	if err := utils.WriteJSONAtomic(s.path, next); err != nil {
		return tagerrors.NewPersistenceError("save_profile", s.path, err)
	}
	s.profiles = next
	s.logger.Info("scan profile saved", "profile", profileID)
	return nil
}

// DeleteProfile removes a profile and persists the document
func (s *Service) DeleteProfile(profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profileID]; !ok {
		return tagerrors.NewNotFoundError("profile", profileID)
	}

	next := make(map[string]Profile, len(s.profiles))
	for id, p := range s.profiles {
		if id != profileID {
			next[id] = p
		}
	}

	if err := utils.WriteJSONAtomic(s.path, next); err != nil {
		return tagerrors.NewPersistenceError("delete_profile", s.path, err)
	}
	s.profiles = next
	s.logger.Info("scan profile deleted", "profile", profileID)
	return nil
}

// ProgressFunc is told about every completed (asset, layer) operation
type ProgressFunc func(processed int, layerID, assetID string)

// RunProfile runs every layer of the profile over its targets and returns the
// number of (asset, layer) operations that completed. Unknown profiles,
// unusable layers and failing assets are logged and skipped; nothing is
// returned to the caller as an error. A cancelled ctx stops the run between
// assets.
func (s *Service) RunProfile(ctx context.Context, profileID string, assetIDs []string) int {
	return s.runProfile(ctx, profileID, assetIDs, nil)
}

func (s *Service) runProfile(ctx context.Context, profileID string, assetIDs []string, progress ProgressFunc) int {
	profile, ok := s.GetProfile(profileID)
	if !ok {
		s.logger.Error("unknown scan profile", "profile", profileID)
		return 0
	}
	metrics.ProfileRunsTotal.WithLabelValues(profileID).Inc()

	if len(profile.Layers) == 0 {
		s.logger.Debug("profile has no layers", "profile", profileID)
		return 0
	}

	targets := s.resolveTargets(ctx, profile, assetIDs)
	log := s.logger.With("profile", profileID)
	log.Info("running scan profile", "layers", len(profile.Layers), "targets", len(targets))

	counter := &runCounter{progress: progress}
	for _, layerID := range profile.Layers {
		if ctx.Err() != nil {
			log.Warn("scan profile cancelled", "processed", counter.value())
			break
		}

		gen, ok := s.generatorFor(layerID, log)
		if !ok {
			continue
		}
		s.runLayer(ctx, log, layerID, gen, targets, counter)
	}

	processed := counter.value()
	log.Info("scan profile finished", "processed", processed)
	return processed
}

// generatorFor resolves and instantiates the generator of one layer
func (s *Service) generatorFor(layerID string, log hclog.Logger) (generatormodule.Generator, bool) {
	desc, ok := s.registry.GetLayer(layerID)
	if !ok {
		log.Warn("layer not registered, skipping", "layer", layerID)
		return nil, false
	}
	if desc.Generator == "" {
		log.Warn("layer has no generator, skipping", "layer", layerID)
		return nil, false
	}

	gen, err := s.factories.Build(desc, s.deps)
	if err != nil {
		log.Error("failed to instantiate generator",
			"layer", layerID,
			"error", tagerrors.NewConfigurationError("generator instantiation failed", layerID, err))
		return nil, false
	}
	return gen, true
}

// resolveTargets returns explicit ids de-duplicated in order, or the filter's matches
func (s *Service) resolveTargets(ctx context.Context, profile Profile, assetIDs []string) []string {
	if len(assetIDs) > 0 {
		seen := make(map[string]struct{}, len(assetIDs))
		targets := make([]string, 0, len(assetIDs))
		for _, id := range assetIDs {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			targets = append(targets, id)
		}
		return targets
	}

	tagged := s.index.QueryAssets(profile.Filter.Query)
	if len(profile.Filter.AssetTypes) == 0 || s.assets == nil {
		return tagged
	}

	typed, err := s.assets.ListAssetIDsByKind(ctx, profile.Filter.AssetTypes)
	if err != nil {
		s.logger.Warn("asset type filter unavailable", "error", err)
		return tagged
	}
	if profile.Filter.Query.IsEmpty() {
		sort.Strings(typed)
		return typed
	}

	allowed := make(map[string]struct{}, len(typed))
	for _, id := range typed {
		allowed[id] = struct{}{}
	}
	targets := tagged[:0:0]
	for _, id := range tagged {
		if _, ok := allowed[id]; ok {
			targets = append(targets, id)
		}
	}
	return targets
}

func (s *Service) runLayer(ctx context.Context, log hclog.Logger, layerID string, gen generatormodule.Generator, targets []string, counter *runCounter) {
	if s.workers <= 1 {
		for _, assetID := range targets {
			if ctx.Err() != nil {
				return
			}
			if s.processAsset(ctx, log, layerID, gen, assetID) {
				counter.add(layerID, assetID)
			}
		}
		return
	}

	pool := utils.NewWorkerPool(s.workers)
	pool.Start()
	defer pool.Stop()

	for _, assetID := range targets {
		if ctx.Err() != nil {
			break
		}
		assetID := assetID
		err := pool.Submit(ctx, func() {
			if ctx.Err() != nil {
				return
			}
			if s.processAsset(ctx, log, layerID, gen, assetID) {
				counter.add(layerID, assetID)
			}
		})
		if err != nil {
			break
		}
	}
	pool.Wait()
}

// processAsset runs one generator call, converting errors and panics into log
// entries. It reports whether the call completed.
func (s *Service) processAsset(ctx context.Context, log hclog.Logger, layerID string, gen generatormodule.Generator, assetID string) (ok bool) {
	s.guard.Wait(ctx)

	start := time.Now()
	defer func() {
		metrics.GeneratorDuration.WithLabelValues(layerID).Observe(time.Since(start).Seconds())
		if rec := recover(); rec != nil {
			log.Error("generator panicked", "asset", assetID, "layer", layerID,
				"error", tagerrors.NewPanicError(rec), "stack", tagerrors.FormatStack(tagerrors.CaptureStack(1)))
			metrics.GeneratorRunsTotal.WithLabelValues(layerID, metrics.OutcomeFailed).Inc()
			ok = false
		}
	}()

	if err := gen.ProcessAsset(ctx, assetID); err != nil {
		log.Error("generator error", "asset", assetID, "layer", layerID,
			"error", tagerrors.NewGeneratorError(layerID, assetID, err))
		metrics.GeneratorRunsTotal.WithLabelValues(layerID, metrics.OutcomeFailed).Inc()
		return false
	}
	return true
}

func (s *Service) publish(eventType events.EventType, message string, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:    eventType,
		Source:  "scan-profiles",
		Message: message,
		Data:    data,
	})
}

// runCounter counts completed operations across workers
type runCounter struct {
	mu        sync.Mutex
	processed int
	progress  ProgressFunc
}

func (c *runCounter) add(layerID, assetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed++
	if c.progress != nil {
		c.progress(c.processed, layerID, assetID)
	}
}

func (c *runCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed
}
