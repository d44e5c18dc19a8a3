package generatormodule

import (
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// maxFeatureEdge bounds the longest edge analysed; larger images are box-downscaled first
const maxFeatureEdge = 512

var errEmptyPixels = errors.New("decoded image has no pixels")

// imageStats are the global statistics the features are derived from
type imageStats struct {
	brightness float64
	warmth     float64
	contrast   float64
}

var featureExtractors = map[string]func(imageStats) float64{
	"brightness": func(s imageStats) float64 { return s.brightness },
	"warmth":     func(s imageStats) float64 { return s.warmth },
	"contrast":   func(s imageStats) float64 { return s.contrast },
}

// luma is the integer ITU-R 601-2 luminance used for greyscale conversion
func luma(r, g, b uint8) int64 {
	return (int64(r)*19595 + int64(g)*38470 + int64(b)*7471 + 0x8000) >> 16
}

// computeStats returns brightness (mean luminance, 0..1), warmth (mean R-B,
// -1..1) and contrast (standard deviation of luminance, 0..1). Sums are kept
// in integers so a uniform image has exactly zero contrast.
func computeStats(img image.Image) (imageStats, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return imageStats{}, errEmptyPixels
	}

	nrgba := imaging.Fit(img, maxFeatureEdge, maxFeatureEdge, imaging.Box)
	if len(nrgba.Pix) == 0 {
		return imageStats{}, errEmptyPixels
	}

	var sumL, sumL2, sumWarm, n int64
	bounds := nrgba.Bounds()
	for y := 0; y < bounds.Dy(); y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+bounds.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			r, g, bl := row[x], row[x+1], row[x+2]
			l := luma(r, g, bl)
			sumL += l
			sumL2 += l * l
			sumWarm += int64(r) - int64(bl)
			n++
		}
	}
	if n == 0 {
		return imageStats{}, errEmptyPixels
	}

	count := float64(n)
	mean := float64(sumL) / count
	variance := float64(sumL2)/count - mean*mean
	if variance < 0 {
		variance = 0
	}

	return imageStats{
		brightness: mean / 255,
		warmth:     float64(sumWarm) / count / 255,
		contrast:   math.Sqrt(variance) / 255,
	}, nil
}

// softmax is the numerically stable softmax: the max score is subtracted before exponentiating
func softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	probs := make([]float64, len(scores))
	var total float64
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		total += probs[i]
	}
	for i := range probs {
		probs[i] /= total
	}
	return probs
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
