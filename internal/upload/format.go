package upload

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

var fileTypes = map[string]string{
	"image/jpeg": "JPEG Image",
	"image/png":  "PNG Image",
	"image/bmp":  "BMP Image",
	"image/webp": "WebP Image",
}

// FormatFileSize renders bytes with 1024-based units, rounded to two
// decimals with trailing zeros dropped: 1536 -> "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	i := 0
	for n := bytes; n >= 1024 && i < len(sizeUnits)-1; n /= 1024 {
		i++
	}

	value := float64(bytes) / math.Pow(1024, float64(i))
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}

// FileType maps a MIME type to its display name.
func FileType(mimeType string) string {
	if name, ok := fileTypes[mimeType]; ok {
		return name
	}
	return "Unknown"
}
