package generatormodule

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/hashicorp/go-hclog"
	tagerrors "github.com/mantonx/mediatags/internal/errors"
	"github.com/mantonx/mediatags/internal/logger"
	"github.com/mantonx/mediatags/internal/metrics"
	"github.com/mantonx/mediatags/internal/modules/layermodule"
)

// classifierExtensions are the image containers the classifier decodes
var classifierExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// companionRemap maps lowercased heuristic tags to classifier tags
var companionRemap = map[string]string{
	"portrait":  "subject:person",
	"animal":    "subject:animal",
	"landscape": "subject:scenery",
}

// ClassifierGenerator scores images with a linear model over global colour
// features. The model is loaded once; a load failure leaves the instance
// degraded and every asset it processes is marked needs_review.
type ClassifierGenerator struct {
	layerID        string
	companionLayer string
	index          TagIndex
	repository     AssetRepository
	model          *Model
	modelErr       error
	logger         hclog.Logger
}

// NewClassifierGenerator is the factory for the classifier key
func NewClassifierGenerator(desc layermodule.Descriptor, deps Dependencies) (Generator, error) {
	if deps.Index == nil {
		return nil, fmt.Errorf("classifier generator requires a tag index")
	}
	layerID := desc.ID
	if layerID == "" {
		layerID = LayerAIDeep
	}
	companion := deps.CompanionLayer
	if companion == "" {
		companion = LayerAIQuick
	}

	g := &ClassifierGenerator{
		layerID:        layerID,
		companionLayer: companion,
		index:          deps.Index,
		repository:     deps.Repository,
		logger:         logger.OrNull(deps.Logger).Named("classifier").With("layer", layerID),
	}

	g.model, g.modelErr = LoadModel(deps.ModelPath)
	if g.modelErr != nil {
		g.logger.Error("failed to load classifier model", "path", deps.ModelPath, "error", g.modelErr)
	} else {
		g.logger.Debug("classifier model loaded", "name", g.model.Name, "version", g.model.Version, "path", g.model.Path)
	}
	return g, nil
}

// ProcessAsset implements Generator
func (g *ClassifierGenerator) ProcessAsset(ctx context.Context, assetID string) error {
	tags, meta, err := g.classify(assetID)
	if err != nil {
		g.logger.Warn("asset needs review", "asset", assetID, "error", err)
		degraded := map[string]interface{}{
			"error":      err.Error(),
			"error_code": tagerrors.CodeOf(err),
		}
		if path, ok := meta["path"]; ok {
			degraded["path"] = path
		}
		g.index.SetTags(assetID, g.layerID, []string{TagNeedsReview}, degraded)
		metrics.GeneratorRunsTotal.WithLabelValues(g.layerID, metrics.OutcomeDegraded).Inc()
		return nil
	}

	g.index.SetTags(assetID, g.layerID, tags, meta)
	metrics.GeneratorRunsTotal.WithLabelValues(g.layerID, metrics.OutcomeOK).Inc()
	return nil
}

// classify runs the per-asset pipeline. On error the returned meta may still
// carry the resolved path.
func (g *ClassifierGenerator) classify(assetID string) ([]string, map[string]interface{}, error) {
	meta := map[string]interface{}{}

	if g.model == nil {
		return nil, meta, tagerrors.NewModelError("classifier model not loaded", g.modelErr)
	}
	if g.repository == nil {
		return nil, meta, tagerrors.NewConfigurationError("asset repository unavailable", g.layerID, nil)
	}

	path, ok := g.repository.GetPathByID(assetID)
	if !ok || path == "" {
		return nil, meta, tagerrors.NewAssetError(assetID, "no path on file for asset", nil)
	}
	meta["path"] = path

	ext := strings.ToLower(filepath.Ext(path))
	if !classifierExtensions[ext] {
		return nil, meta, tagerrors.NewAssetError(assetID, fmt.Sprintf("unsupported image container %q", ext), nil)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, meta, tagerrors.NewAssetError(assetID, "failed to decode image", err)
	}

	stats, err := computeStats(img)
	if err != nil {
		return nil, meta, tagerrors.NewAssetError(assetID, "failed to compute features", err)
	}

	vector := make([]float64, len(g.model.Features))
	features := make(map[string]interface{}, len(g.model.Features))
	for i, name := range g.model.Features {
		extract, ok := featureExtractors[name]
		if !ok {
			return nil, meta, tagerrors.NewModelError(fmt.Sprintf("unsupported feature %q", name), nil)
		}
		vector[i] = extract(stats)
		features[name] = round4(vector[i])
	}

	scores, err := g.model.Score(vector)
	if err != nil {
		return nil, meta, err
	}
	probs := softmax(scores)

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	label := g.model.Labels[best]

	distribution := make(map[string]interface{}, len(probs))
	for i, l := range g.model.Labels {
		distribution[l.Tag] = round4(probs[i])
	}

	tags := make([]string, 0, 2+len(label.Extras))
	if label.Tag != "" {
		tags = append(tags, label.Tag)
	}
	tags = append(tags, label.Extras...)
	tags = append(tags, g.companionTags(assetID)...)
	if len(nonEmpty(tags)) == 0 {
		return nil, meta, tagerrors.NewModelError(fmt.Sprintf("label %q produced no tags", label.ID), nil)
	}

	meta["model"] = map[string]interface{}{
		"name":    g.model.Name,
		"version": g.model.Version,
		"path":    g.model.Path,
	}
	meta["label"] = label.ID
	meta["tag"] = label.Tag
	meta["confidence"] = round4(probs[best])
	meta["distribution"] = distribution
	meta["features"] = features

	return tags, meta, nil
}

// companionTags remaps tags the heuristic layer already recorded for the asset
func (g *ClassifierGenerator) companionTags(assetID string) []string {
	layers := g.index.GetLayersForAsset(assetID)
	rec, ok := layers[g.companionLayer]
	if !ok {
		return nil
	}

	var tags []string
	for _, t := range rec.Tags {
		if mapped, ok := companionRemap[strings.ToLower(strings.TrimSpace(t))]; ok {
			tags = append(tags, mapped)
		}
	}
	return tags
}

func nonEmpty(tags []string) []string {
	out := tags[:0:0]
	for _, t := range tags {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}
