package domain

import (
	"time"
)

// Placeholder values used whenever no real file is available.
const (
	DemoFileName     = "demo-image.jpg"
	DemoFileSize     = 1024 * 1024
	DemoMIMEType     = "image/jpeg"
	FallbackImageURL = "https://images.unsplash.com/photo-1541888946425-d81bb19240f5"
)

// SelectedFile is the file currently chosen on the upload page.
type SelectedFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
	// Synthetic marks the demo placeholder substituted when nothing was selected.
	Synthetic  bool      `json:"synthetic"`
	SelectedAt time.Time `json:"selected_at"`
}

// DemoSelection returns the placeholder selection used in demo mode.
func DemoSelection() *SelectedFile {
	return &SelectedFile{
		Name:       DemoFileName,
		Size:       DemoFileSize,
		MIMEType:   DemoMIMEType,
		Synthetic:  true,
		SelectedAt: time.Now(),
	}
}

// SessionPayload is the handoff written before navigating to the results page.
type SessionPayload struct {
	ImageData string `json:"analyzed_image"`
	FileName  string `json:"file_name"`
}

// Preview is the rendered preview of a selection.
type Preview struct {
	Src     string `json:"src"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Camera  string `json:"camera,omitempty"`
	TakenAt string `json:"taken_at,omitempty"`
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Defect is one row of the demo detection output.
type Defect struct {
	Type     string   `json:"type" yaml:"type"`
	Count    int      `json:"count" yaml:"count"`
	Severity Severity `json:"severity" yaml:"severity"`
}

type DemoStats struct {
	TotalArea      string `json:"total_area" yaml:"total_area"`
	Confidence     string `json:"confidence" yaml:"confidence"`
	ProcessingTime string `json:"processing_time" yaml:"processing_time"`
}

// DemoResult is the fixed record shown on the results page. It is never
// derived from the analyzed image.
type DemoResult struct {
	Defects []Defect  `json:"defects" yaml:"defects"`
	Stats   DemoStats `json:"stats" yaml:"stats"`
}

// ChartSlice is one category of the defect distribution chart.
type ChartSlice struct {
	Label   string  `json:"label" yaml:"label"`
	Percent float64 `json:"percent" yaml:"percent"`
	Color   string  `json:"color" yaml:"color"`
}
