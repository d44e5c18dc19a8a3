package generatormodule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/logger"
	"github.com/mantonx/mediatags/internal/metrics"
	"github.com/mantonx/mediatags/internal/modules/layermodule"
	"github.com/mantonx/mediatags/internal/utils"
)

// filenameRules map substrings of the lowercased base name to tags
var filenameRules = []struct {
	needles []string
	tag     string
}{
	{[]string{"portrait", "headshot", "face"}, "portrait"},
	{[]string{"dog", "cat", "pet"}, "animal"},
	{[]string{"landscape", "scenery"}, "landscape"},
}

// HeuristicGenerator tags assets from cheap signals: filename tokens, the
// container extension, shallow media probing and an optional vision tagger.
// Results are unioned into the layer with AddTags.
type HeuristicGenerator struct {
	layerID       string
	index         TagIndex
	repository    AssetRepository
	vision        VisionTagger
	visionTimeout time.Duration
	prober        MediaProber
	logger        hclog.Logger
}

// NewHeuristicGenerator is the factory for the heuristic key
func NewHeuristicGenerator(desc layermodule.Descriptor, deps Dependencies) (Generator, error) {
	if deps.Index == nil {
		return nil, fmt.Errorf("heuristic generator requires a tag index")
	}
	layerID := desc.ID
	if layerID == "" {
		layerID = LayerAIQuick
	}
	return &HeuristicGenerator{
		layerID:       layerID,
		index:         deps.Index,
		repository:    deps.Repository,
		vision:        deps.Vision,
		visionTimeout: deps.VisionTimeout,
		prober:        deps.Prober,
		logger:        logger.OrNull(deps.Logger).Named("heuristic").With("layer", layerID),
	}, nil
}

// ProcessAsset implements Generator
func (g *HeuristicGenerator) ProcessAsset(ctx context.Context, assetID string) error {
	var tags []string

	path := ""
	if g.repository != nil {
		path, _ = g.repository.GetPathByID(assetID)
	}

	if path != "" {
		tags = append(tags, tagsFromFilename(path)...)

		if _, err := os.Stat(path); err == nil {
			if kind := utils.MediaKind(path); kind != "" {
				tags = append(tags, "kind:"+kind)
			}

			mediaTags, mediaType := g.detectMedia(ctx, path)
			if len(mediaTags) > 0 {
				tags = append(tags, mediaTags...)
				tags = append(tags, g.visionTags(ctx, path, mediaType)...)
			}
		} else {
			g.logger.Debug("asset path not readable", "asset", assetID, "path", path, "error", err)
		}
	}

	if len(tags) == 0 {
		tags = []string{TagUnknown}
	}

	g.index.AddTags(assetID, g.layerID, tags)
	metrics.GeneratorRunsTotal.WithLabelValues(g.layerID, metrics.OutcomeOK).Inc()
	return nil
}

func tagsFromFilename(path string) []string {
	lower := strings.ToLower(filepath.Base(path))
	var tags []string
	for _, rule := range filenameRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	return tags
}

// detectMedia tries image decoding, then audio metadata, then video probing.
// Files whose extension says image or audio are never handed to the video
// prober.
func (g *HeuristicGenerator) detectMedia(ctx context.Context, path string) ([]string, string) {
	if tags, err := imageTags(path); err == nil {
		return tags, utils.KindImage
	}

	if tags, err := audioTags(path); err == nil {
		return tags, utils.KindAudio
	}

	switch utils.MediaKind(path) {
	case utils.KindImage, utils.KindAudio:
		return nil, ""
	}
	if g.prober == nil {
		return nil, ""
	}

	vs, err := g.prober.ProbeVideo(ctx, path)
	if err != nil {
		g.logger.Debug("video probe failed", "path", path, "error", err)
		return nil, ""
	}
	return videoTags(vs), utils.KindVideo
}

// visionTags consults the optional vision tagger. Failures are logged and ignored.
func (g *HeuristicGenerator) visionTags(ctx context.Context, path, mediaType string) []string {
	if g.vision == nil || mediaType == "" {
		return nil
	}

	if g.visionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.visionTimeout)
		defer cancel()
	}

	predicted, err := g.vision.GenerateTags(ctx, path, mediaType)
	if err != nil {
		g.logger.Warn("vision tagger failed", "path", path, "error", err)
		return nil
	}

	tags := make([]string, 0, len(predicted))
	for _, t := range predicted {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
