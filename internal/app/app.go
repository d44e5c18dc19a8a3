// Package app wires the tag index, layer registry, catalog and scan profile
// service into a single runnable application.
package app

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/config"
	"github.com/mantonx/mediatags/internal/events"
	"github.com/mantonx/mediatags/internal/logger"
	"github.com/mantonx/mediatags/internal/modules/catalogmodule"
	"github.com/mantonx/mediatags/internal/modules/generatormodule"
	"github.com/mantonx/mediatags/internal/modules/layermodule"
	"github.com/mantonx/mediatags/internal/modules/scanprofilemodule"
	"github.com/mantonx/mediatags/internal/modules/tagindexmodule"
	"github.com/mantonx/mediatags/internal/utils"
)

// App holds the long-lived components
type App struct {
	Config   *config.Config
	Logger   hclog.Logger
	Bus      *events.Bus
	Registry *layermodule.Registry
	Index    *tagindexmodule.Store
	Catalog  *catalogmodule.Catalog
	Profiles *scanprofilemodule.Service
	Jobs     *scanprofilemodule.JobManager

	vision *generatormodule.VisionPluginClient
	cancel context.CancelFunc
}

// RegisterDefaultLayers registers the built-in layers
func RegisterDefaultLayers(registry *layermodule.Registry) {
	registry.RegisterLayer(generatormodule.LayerBasic, layermodule.Descriptor{
		Name:      "Basic",
		Generator: generatormodule.KeyHeuristic,
	})
	registry.RegisterLayer(generatormodule.LayerAIQuick, layermodule.Descriptor{
		Name:      "AI Quick",
		Generator: generatormodule.KeyHeuristic,
	})
	registry.RegisterLayer(generatormodule.LayerAIDeep, layermodule.Descriptor{
		Name:      "AI Deep",
		Generator: generatormodule.KeyClassifier,
	})
}

// New builds the application from cfg. The caller must Close it.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.NewConfigManager().GetConfig()
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.New("mediatags")

	resolver := utils.NewPathResolver(cfg.Storage.DataDir)
	if err := resolver.EnsureDataRoot(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	modelPath := cfg.Classifier.ModelPath
	if modelPath != "" {
		resolved, err := resolver.ResolveUserPath(modelPath)
		if err != nil {
			return nil, fmt.Errorf("invalid classifier model path: %w", err)
		}
		modelPath = resolved
	}

	a := &App{
		Config:   cfg,
		Logger:   log,
		Bus:      events.NewBus(log),
		Registry: layermodule.NewRegistry(log),
		Index:    tagindexmodule.NewStore(cfg.Storage.TagIndexPath, log),
	}
	events.SetGlobalEventBus(a.Bus)
	RegisterDefaultLayers(a.Registry)

	catalog, err := catalogmodule.Open(cfg.Catalog, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	catalog.SetEventBus(a.Bus)
	a.Catalog = catalog

	deps := generatormodule.Dependencies{
		Repository:     catalog,
		Prober:         generatormodule.NewFFProbe(cfg.Scanner.FFProbeBinary, cfg.Scanner.FFProbeTimeout),
		VisionTimeout:  cfg.Vision.Timeout,
		ModelPath:      modelPath,
		CompanionLayer: cfg.Classifier.CompanionLayer,
		Logger:         log,
	}

	if cfg.Vision.PluginPath != "" {
		vision, err := generatormodule.LaunchVisionPlugin(cfg.Vision.PluginPath, log)
		if err != nil {
			// Generators run without the optional tagger
			log.Warn("vision plugin unavailable", "path", cfg.Vision.PluginPath, "error", err)
		} else {
			a.vision = vision
			deps.Vision = vision.Tagger
		}
	}

	var guard *scanprofilemodule.LoadGuard
	if cfg.Scanner.LoadGuard {
		guard = scanprofilemodule.NewLoadGuard(cfg.Scanner.CPUThreshold, cfg.Scanner.MemoryThreshold, cfg.Scanner.MaxThrottleWait, log)
	}

	profiles, err := scanprofilemodule.NewService(scanprofilemodule.Options{
		ProfilesPath: cfg.Storage.ProfilesPath,
		Registry:     a.Registry,
		Index:        a.Index,
		Deps:         deps,
		Assets:       catalog,
		Guard:        guard,
		Workers:      cfg.Scanner.WorkerCount,
		Bus:          a.Bus,
		Logger:       log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Profiles = profiles
	a.Jobs = scanprofilemodule.NewJobManager(profiles, a.Bus, log)

	log.Info("application initialized",
		"tag_index", cfg.Storage.TagIndexPath,
		"profiles", cfg.Storage.ProfilesPath,
		"catalog", cfg.Catalog.Type,
		"layers", a.Registry.LayerIDs())
	return a, nil
}

// Start launches background watchers. They stop on Close or when ctx ends.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	if !a.Config.Scanner.WatchProfiles {
		return nil
	}
	if err := a.Profiles.Watch(ctx); err != nil {
		return fmt.Errorf("failed to watch scan profiles: %w", err)
	}
	return nil
}

// Close stops jobs and watchers and releases the catalog and vision plugin
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Jobs != nil {
		a.Jobs.Shutdown()
	}
	if a.vision != nil {
		a.vision.Close()
	}
	if a.Catalog != nil {
		return a.Catalog.Close()
	}
	return nil
}
