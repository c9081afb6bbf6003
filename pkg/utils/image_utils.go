package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
	"go.uber.org/zap"

	// BMP and WebP uploads are accepted, so their decoders must be registered.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/Dmitryqr/defect-detection-website/internal/domain"
)

const (
	previewMaxSide = 480
	previewQuality = 80
)

type ImageProcessor struct {
	log     *zap.Logger
	maxSide int
	quality int
}

func NewImageProcessor(log *zap.Logger) *ImageProcessor {
	return &ImageProcessor{log: log, maxSide: previewMaxSide, quality: previewQuality}
}

// DataURI encodes data as a base64 data URI of the given MIME type.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Thumbnail decodes data and returns a JPEG that fits into the preview box
// together with the original dimensions.
func (p *ImageProcessor) Thumbnail(data []byte) ([]byte, image.Point, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("failed to decode image: %w", err)
	}

	size := img.Bounds().Size()
	thumb := imaging.Fit(img, p.maxSide, p.maxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, image.Point{}, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	p.log.Debug("Thumbnail created",
		zap.Int("width", size.X),
		zap.Int("height", size.Y),
		zap.Int("size", buf.Len()))

	return buf.Bytes(), size, nil
}

// Preview renders a selection for display. Files that cannot be decoded are
// shown as-is.
func (p *ImageProcessor) Preview(file *domain.SelectedFile) domain.Preview {
	thumb, size, err := p.Thumbnail(file.Data)
	if err != nil {
		p.log.Debug("Falling back to raw preview",
			zap.String("file", file.Name),
			zap.Error(err))
		return domain.Preview{Src: DataURI(file.MIMEType, file.Data)}
	}

	preview := domain.Preview{
		Src:    DataURI("image/jpeg", thumb),
		Width:  size.X,
		Height: size.Y,
	}
	preview.Camera, preview.TakenAt = p.CameraInfo(file.Data)
	return preview
}

// CameraInfo extracts the camera make/model and capture time from EXIF data.
// Both are empty when the image carries no EXIF block.
func (p *ImageProcessor) CameraInfo(data []byte) (camera, takenAt string) {
	defer func() {
		// go-exif panics on some malformed blocks
		if r := recover(); r != nil {
			p.log.Debug("EXIF parsing panicked", zap.Any("recovered", r))
			camera, takenAt = "", ""
		}
	}()

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return "", ""
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return "", ""
	}

	var maker, model string
	for _, entry := range entries {
		switch entry.TagName {
		case "Make":
			maker = strings.TrimSpace(entry.Formatted)
		case "Model":
			model = strings.TrimSpace(entry.Formatted)
		case "DateTimeOriginal":
			takenAt = strings.TrimSpace(entry.Formatted)
		}
	}

	camera = strings.TrimSpace(maker + " " + model)
	return camera, takenAt
}
