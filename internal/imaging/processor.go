// Package imaging prepares uploaded logo images for model calls and computes
// perceptual fingerprints used to spot near-duplicate uploads.
package imaging

import (
	"fmt"

	"github.com/h2non/bimg"
)

// ProcessorConfig holds configuration for image normalisation.
type ProcessorConfig struct {
	// Quality for JPEG/WebP encoding (1-100, default: 85)
	Quality int
	// OutputFormat specifies the output format (jpeg, webp, png)
	OutputFormat string
	// StripMetadata removes all EXIF/metadata (default: true)
	StripMetadata bool
	// MaxDimension bounds the longest edge in pixels (0 = no limit).
	// Vision models downscale large inputs anyway, so sending them is wasted bandwidth.
	MaxDimension int
}

// DefaultConfig returns the settings used before images are sent to a model.
func DefaultConfig() ProcessorConfig {
	return ProcessorConfig{
		Quality:       85,
		OutputFormat:  "jpeg",
		StripMetadata: true,
		MaxDimension:  2048,
	}
}

// Processed is a normalised image ready for upload to a model.
type Processed struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Processor re-encodes images with libvips.
type Processor struct {
	config ProcessorConfig
}

// NewProcessor creates a new image processor with the given config.
func NewProcessor(config ProcessorConfig) *Processor {
	return &Processor{config: config}
}

// Normalize strips metadata, bounds the image size and re-encodes it to the
// configured format. The input is never modified.
func (p *Processor) Normalize(input []byte) (*Processed, error) {
	img := bimg.NewImage(input)
	metadata, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read image metadata: %w", err)
	}

	options := bimg.Options{
		Quality:       p.config.Quality,
		StripMetadata: p.config.StripMetadata,
		Type:          outputType(p.config.OutputFormat, metadata.Type),
	}

	width, height := metadata.Size.Width, metadata.Size.Height
	if limit := p.config.MaxDimension; limit > 0 && (width > limit || height > limit) {
		// bimg keeps the aspect ratio when only one side is set.
		if width >= height {
			options.Width = limit
			height = height * limit / width
			width = limit
		} else {
			options.Height = limit
			width = width * limit / height
			height = limit
		}
	}

	out, err := img.Process(options)
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return &Processed{
		Data:     out,
		MIMEType: mimeFor(options.Type),
		Width:    width,
		Height:   height,
	}, nil
}

// outputType maps the configured format, falling back to the source format.
func outputType(format, source string) bimg.ImageType {
	switch format {
	case "jpeg", "jpg":
		return bimg.JPEG
	case "webp":
		return bimg.WEBP
	case "png":
		return bimg.PNG
	}
	switch source {
	case "png":
		return bimg.PNG
	case "webp":
		return bimg.WEBP
	case "gif":
		return bimg.GIF
	default:
		return bimg.JPEG
	}
}

func mimeFor(t bimg.ImageType) string {
	switch t {
	case bimg.PNG:
		return "image/png"
	case bimg.WEBP:
		return "image/webp"
	case bimg.GIF:
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// HasEXIF reports whether identifying EXIF fields survive in the image.
func HasEXIF(data []byte) (bool, error) {
	metadata, err := bimg.NewImage(data).Metadata()
	if err != nil {
		return false, fmt.Errorf("failed to read image metadata: %w", err)
	}
	exif := metadata.EXIF
	return exif.Make != "" || exif.Model != "" ||
		exif.GPSLatitude != "" || exif.GPSLongitude != "" ||
		exif.DateTimeOriginal != "" || exif.Software != "", nil
}
