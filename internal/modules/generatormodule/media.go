package generatormodule

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	// registers the webp decoder with image.DecodeConfig
	_ "github.com/chai2010/webp"
	"github.com/dhowden/tag"
)

// orientation compares width and height
func orientation(width, height int) string {
	switch {
	case width == height:
		return "square"
	case width > height:
		return "landscape"
	default:
		return "portrait"
	}
}

func durationBucket(seconds float64) string {
	switch {
	case seconds < 5:
		return "duration:micro"
	case seconds < 30:
		return "duration:short"
	case seconds < 120:
		return "duration:medium"
	default:
		return "duration:long"
	}
}

// imageTags decodes only the image header, so format detection is by content
// rather than by extension.
func imageTags(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, err
	}

	tags := []string{"image"}
	if format != "" {
		tags = append(tags, "format:"+strings.ToLower(format))
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		tags = append(tags,
			fmt.Sprintf("resolution:%dx%d", cfg.Width, cfg.Height),
			"orientation:"+orientation(cfg.Width, cfg.Height))
	}
	if hasAlpha(cfg.ColorModel) {
		tags = append(tags, "has_alpha")
	}
	if isGray(cfg.ColorModel) || (format == "png" && pngGrayAlpha(f)) {
		tags = append(tags, "grayscale")
	}
	return tags, nil
}

// pngColorTypeOffset is the colour type byte of the IHDR chunk, which the PNG
// format requires to come first.
const (
	pngColorTypeOffset = 25
	pngColorGrayAlpha  = 4
)

// pngGrayAlpha reports whether the PNG stores grey+alpha samples. The decoder
// widens those to NRGBA, so the colour model alone cannot tell.
func pngGrayAlpha(f *os.File) bool {
	var b [1]byte
	if _, err := f.ReadAt(b[:], pngColorTypeOffset); err != nil {
		return false
	}
	return b[0] == pngColorGrayAlpha
}

func hasAlpha(m color.Model) bool {
	switch m {
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return true
	}
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

func isGray(m color.Model) bool {
	return m == color.GrayModel || m == color.Gray16Model
}

var audioFileTypes = map[tag.FileType]bool{
	tag.MP3:  true,
	tag.M4A:  true,
	tag.M4B:  true,
	tag.M4P:  true,
	tag.ALAC: true,
	tag.FLAC: true,
	tag.OGG:  true,
	tag.DSF:  true,
}

// audioTags reads embedded audio metadata
func audioTags(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}
	if !audioFileTypes[m.FileType()] {
		return nil, fmt.Errorf("not an audio container: %q", m.FileType())
	}

	tags := []string{"audio", "format:" + strings.ToLower(string(m.FileType()))}
	if genre := strings.ToLower(strings.TrimSpace(m.Genre())); genre != "" {
		tags = append(tags, "genre:"+genre)
	}
	return tags, nil
}

func videoTags(vs *VideoStream) []string {
	tags := []string{"video"}
	if vs.Width > 0 && vs.Height > 0 {
		tags = append(tags,
			fmt.Sprintf("resolution:%dx%d", vs.Width, vs.Height),
			"orientation:"+orientation(vs.Width, vs.Height))
	}
	if vs.Duration != nil {
		tags = append(tags, durationBucket(*vs.Duration))
	}
	if vs.Codec != "" {
		tags = append(tags, "codec:"+vs.Codec)
	}
	return tags
}
