// Command vision-example is a sample vision plugin. It tags images by their
// dominant colour channel and everything else by its media type.
package main

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "github.com/chai2010/webp"
	"github.com/mantonx/mediatags/internal/modules/generatormodule"
)

type colourTagger struct{}

func (colourTagger) GenerateTags(ctx context.Context, path, mediaType string) ([]string, error) {
	if mediaType != "image" {
		return []string{"vision:" + mediaType}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	var r, g, b uint64
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		if y%64 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			r += uint64(pr)
			g += uint64(pg)
			b += uint64(pb)
		}
	}

	switch {
	case r >= g && r >= b:
		return []string{"vision:red"}, nil
	case g >= b:
		return []string{"vision:green"}, nil
	default:
		return []string{"vision:blue"}, nil
	}
}

func main() {
	generatormodule.ServeVisionPlugin(colourTagger{})
}
