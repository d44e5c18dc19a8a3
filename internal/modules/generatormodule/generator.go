// Package generatormodule contains the layer generators that compute tags for
// one asset and one layer, and the typed factory registry that builds them.
package generatormodule

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/modules/tagindexmodule"
)

// Sentinel tags
const (
	TagUnknown     = "unknown"
	TagNeedsReview = "needs_review"
)

// Default layer ids
const (
	LayerBasic   = "basic"
	LayerAIQuick = "ai_quick"
	LayerAIDeep  = "ai_deep"
)

// Generator computes tags for a single asset and writes them to its own layer.
// Recoverable conditions such as missing files or unreadable media are
// recorded in the index instead of being returned.
type Generator interface {
	ProcessAsset(ctx context.Context, assetID string) error
}

// AssetRepository resolves asset ids to filesystem paths
type AssetRepository interface {
	GetPathByID(assetID string) (string, bool)
}

// TagIndex is the part of the tag index store generators write through
type TagIndex interface {
	GetLayersForAsset(assetID string) map[string]tagindexmodule.Record
	SetTags(assetID, layerID string, tags []string, meta map[string]interface{})
	AddTags(assetID, layerID string, tags []string)
}

// VisionTagger is an optional external tagging capability
type VisionTagger interface {
	GenerateTags(ctx context.Context, path, mediaType string) ([]string, error)
}

// Dependencies are the collaborators handed to every generator factory
type Dependencies struct {
	Index      TagIndex
	Repository AssetRepository
	Vision     VisionTagger
	Prober     MediaProber
	Logger     hclog.Logger

	// VisionTimeout bounds each vision call. Zero means no extra bound.
	VisionTimeout time.Duration

	// ModelPath selects the classifier model description. Empty uses the embedded model.
	ModelPath string

	// CompanionLayer is the heuristic layer the classifier remaps tags from
	CompanionLayer string
}
