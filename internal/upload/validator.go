package upload

import (
	"fmt"
	"strings"

	"github.com/Dmitryqr/defect-detection-website/internal/domain"
)

// Validator decides whether a candidate file may become the current
// selection. It has no side effects.
type Validator struct {
	allowed map[string]struct{}
	order   []string
	maxSize int64
}

func NewValidator(allowedTypes []string, maxSize int64) *Validator {
	v := &Validator{
		allowed: make(map[string]struct{}, len(allowedTypes)),
		maxSize: maxSize,
	}
	for _, t := range allowedTypes {
		t = strings.TrimSpace(t)
		if _, dup := v.allowed[t]; dup || t == "" {
			continue
		}
		v.allowed[t] = struct{}{}
		v.order = append(v.order, t)
	}
	return v
}

// Validate accepts iff mimeType is exactly one of the allowed types and
// size does not exceed the limit. Format is checked before size.
func (v *Validator) Validate(mimeType string, size int64) error {
	if _, ok := v.allowed[mimeType]; !ok {
		return domain.NewUserError(domain.KindUnsupportedFormat,
			"Only "+v.Formats()+" formats are supported",
			fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, mimeType))
	}

	if size > v.maxSize {
		return domain.NewUserError(domain.KindFileTooLarge,
			"File is too large (max "+FormatFileSize(v.maxSize)+")",
			fmt.Errorf("%w: %d bytes", domain.ErrFileTooLarge, size))
	}

	return nil
}

// MaxSize returns the upload limit in bytes.
func (v *Validator) MaxSize() int64 { return v.maxSize }

// Formats renders the allow-list the way users know the formats,
// e.g. "JPG, PNG, BMP, WebP".
func (v *Validator) Formats() string {
	names := make([]string, 0, len(v.order))
	for _, t := range v.order {
		switch t {
		case "image/jpeg":
			names = append(names, "JPG")
		case "image/webp":
			names = append(names, "WebP")
		default:
			names = append(names, strings.ToUpper(strings.TrimPrefix(t, "image/")))
		}
	}
	return strings.Join(names, ", ")
}
