// Package catalogmodule is the asset repository: a gorm backed catalog that
// maps asset ids to media files on disk.
package catalogmodule

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/config"
	tagerrors "github.com/mantonx/mediatags/internal/errors"
	"github.com/mantonx/mediatags/internal/events"
	"github.com/mantonx/mediatags/internal/logger"
	"github.com/mantonx/mediatags/internal/utils"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

// Catalog stores assets in sqlite or postgres
type Catalog struct {
	db     *gorm.DB
	bus    *events.Bus
	logger hclog.Logger

	// HashContents stores a SHA256 of each file on import
	HashContents bool
}

// Open connects to the configured database and migrates the schema
func Open(cfg config.CatalogConfig, log hclog.Logger) (*Catalog, error) {
	gormConfig := &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	}

	var db *gorm.DB
	var err error

	switch cfg.Type {
	case "postgres":
		if cfg.DSN == "" {
			return nil, tagerrors.NewConfigurationError("postgres catalog requires a DSN", "catalog", nil)
		}
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormConfig)
	case "sqlite", "":
		if cfg.Path == "" {
			return nil, tagerrors.NewConfigurationError("sqlite catalog requires a path", "catalog", nil)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormConfig)
	default:
		return nil, tagerrors.NewConfigurationError(fmt.Sprintf("unsupported catalog type: %s", cfg.Type), "catalog", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s catalog: %w", cfg.Type, err)
	}
	return setup(db, cfg.Type, log)
}

// setup tunes the pool and migrates. The connection is closed when either fails.
func setup(db *gorm.DB, dbType string, log hclog.Logger) (*Catalog, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if dbType == "postgres" {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		// SQLite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	c := New(db, log)
	if err := c.Migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	c.logger.Info("catalog opened", "type", dbType)
	return c, nil
}

// New wraps an existing connection without migrating it
func New(db *gorm.DB, log hclog.Logger) *Catalog {
	return &Catalog{
		db:     db,
		logger: logger.OrNull(log).Named("catalog"),
	}
}

// Migrate creates or updates the assets table
func (c *Catalog) Migrate() error {
	if err := c.db.AutoMigrate(&Asset{}); err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return nil
}

// SetEventBus publishes catalog.asset.added events on bus
func (c *Catalog) SetEventBus(bus *events.Bus) {
	c.bus = bus
}

// Close releases the underlying connection
func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetPathByID resolves an asset id to its file path
func (c *Catalog) GetPathByID(assetID string) (string, bool) {
	var asset Asset
	err := c.db.Select("path").Where("id = ?", assetID).Take(&asset).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.logger.Warn("asset lookup failed", "asset", assetID, "error", err)
		}
		return "", false
	}
	return asset.Path, true
}

// Get returns one asset
func (c *Catalog) Get(ctx context.Context, assetID string) (*Asset, error) {
	var asset Asset
	err := c.db.WithContext(ctx).Where("id = ?", assetID).Take(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, tagerrors.NewNotFoundError("asset", assetID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load asset %s: %w", assetID, err)
	}
	return &asset, nil
}

// FindByPath returns the asset stored for path
func (c *Catalog) FindByPath(ctx context.Context, path string) (*Asset, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	var asset Asset
	err = c.db.WithContext(ctx).Where("path = ?", abs).Take(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, tagerrors.NewNotFoundError("asset", abs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find asset by path: %w", err)
	}
	return &asset, nil
}

// AddPath catalogs one media file, refreshing size and modification time when
// it is already known.
func (c *Catalog) AddPath(ctx context.Context, path string) (*Asset, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, tagerrors.NewAssetError("", "cannot stat media file", err)
	}
	if !info.Mode().IsRegular() {
		return nil, tagerrors.NewValidationError("not a regular file: "+abs, "path")
	}
	kind := utils.MediaKind(abs)
	if kind == "" || utils.IsSkippedFile(abs) {
		return nil, tagerrors.NewValidationError("not a supported media file: "+abs, "path")
	}

	asset := &Asset{
		ID:        utils.AssetIDForPath(abs),
		Path:      abs,
		MediaType: kind,
		Size:      info.Size(),
		ModTime:   info.ModTime().UTC(),
	}
	if c.HashContents {
		if asset.ContentHash, err = utils.CalculateFileHash(abs); err != nil {
			return nil, tagerrors.NewAssetError(asset.ID, "failed to hash media file", err)
		}
	}

	err = c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"media_type", "size", "mod_time", "content_hash", "updated_at"}),
	}).Create(asset).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save asset: %w", err)
	}

	if c.bus != nil {
		c.bus.Publish(events.Event{
			Type:    events.EventAssetAdded,
			Source:  "catalog",
			Message: "asset cataloged",
			Data: map[string]interface{}{
				"asset_id":   asset.ID,
				"path":       asset.Path,
				"media_type": asset.MediaType,
			},
		})
	}
	return asset, nil
}

// ImportDirectory walks root and catalogs every supported media file. Hidden
// directories are not descended into. Per-file failures are counted, not returned.
func (c *Catalog) ImportDirectory(ctx context.Context, root string) (ImportResult, error) {
	var result ImportResult

	info, err := os.Stat(root)
	if err != nil {
		return result, tagerrors.NewValidationError("import root not found: "+root, "root")
	}
	if !info.IsDir() {
		return result, tagerrors.NewValidationError("import root is not a directory: "+root, "root")
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			c.logger.Warn("skipping unreadable path", "path", path, "error", walkErr)
			result.Failed++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !utils.IsMediaFile(path) {
			result.Skipped++
			return nil
		}
		if _, err := c.AddPath(ctx, path); err != nil {
			c.logger.Warn("failed to catalog file", "path", path, "error", err)
			result.Failed++
			return nil
		}
		result.Added++
		return nil
	})
	if err != nil {
		return result, err
	}

	c.logger.Info("directory imported", "root", root, "added", result.Added, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// ListAssets returns assets ordered by path. limit <= 0 means no limit.
func (c *Catalog) ListAssets(ctx context.Context, limit, offset int) ([]Asset, error) {
	var assets []Asset
	q := c.db.WithContext(ctx).Order("path")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

// ListAssetIDs returns every asset id, sorted
func (c *Catalog) ListAssetIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.db.WithContext(ctx).Model(&Asset{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list asset ids: %w", err)
	}
	return ids, nil
}

// ListAssetIDsByKind returns the sorted ids of assets whose media type is one of kinds
func (c *Catalog) ListAssetIDsByKind(ctx context.Context, kinds []string) ([]string, error) {
	normalized := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			normalized = append(normalized, k)
		}
	}
	if len(normalized) == 0 {
		return []string{}, nil
	}

	var ids []string
	err := c.db.WithContext(ctx).Model(&Asset{}).
		Where("media_type IN ?", normalized).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assets by kind: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of cataloged assets
func (c *Catalog) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(&Asset{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return n, nil
}

// Remove deletes an asset by id
func (c *Catalog) Remove(ctx context.Context, assetID string) error {
	res := c.db.WithContext(ctx).Where("id = ?", assetID).Delete(&Asset{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove asset: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return tagerrors.NewNotFoundError("asset", assetID)
	}
	return nil
}

// RemoveByPath deletes the asset stored for path and returns its id
func (c *Catalog) RemoveByPath(ctx context.Context, path string) (string, error) {
	asset, err := c.FindByPath(ctx, path)
	if err != nil {
		return "", err
	}
	return asset.ID, c.Remove(ctx, asset.ID)
}
