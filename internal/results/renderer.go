// Package results builds the results page: the handed-off image with its
// fallbacks, the constant demo detection record, its chart and a
// downloadable Markdown report.
package results

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Dmitryqr/defect-detection-website/internal/domain"
	"github.com/Dmitryqr/defect-detection-website/internal/session"
)

//go:embed demo.yaml
var demoYAML []byte

type fixture struct {
	domain.DemoResult `yaml:",inline"`
	Chart             []domain.ChartSlice `yaml:"chart"`
}

var (
	loadOnce sync.Once
	loaded   fixture
	loadErr  error
)

func load() (fixture, error) {
	loadOnce.Do(func() {
		if err := yaml.Unmarshal(demoYAML, &loaded); err != nil {
			loadErr = fmt.Errorf("failed to decode demo result: %w", err)
		}
	})
	return loaded, loadErr
}

// DemoResult returns a copy of the fixed detection record.
func DemoResult() (domain.DemoResult, error) {
	f, err := load()
	if err != nil {
		return domain.DemoResult{}, err
	}
	r := f.DemoResult
	r.Defects = append([]domain.Defect(nil), f.Defects...)
	return r, nil
}

// ChartSlices returns the fixed defect distribution.
func ChartSlices() ([]domain.ChartSlice, error) {
	f, err := load()
	if err != nil {
		return nil, err
	}
	return append([]domain.ChartSlice(nil), f.Chart...), nil
}

// View is everything the results page displays.
type View struct {
	ImageSrc string              `json:"image_src"`
	FileName string              `json:"file_name"`
	Embedded bool                `json:"embedded"`
	Result   domain.DemoResult   `json:"result"`
	Chart    []domain.ChartSlice `json:"chart"`
}

// TotalDefects sums the defect counts.
func (v View) TotalDefects() int {
	total := 0
	for _, d := range v.Result.Defects {
		total += d.Count
	}
	return total
}

type Renderer struct {
	store         session.Storage
	fallbackImage string
	log           *zap.Logger
}

func NewRenderer(store session.Storage, fallbackImage string, log *zap.Logger) *Renderer {
	if fallbackImage == "" {
		fallbackImage = domain.FallbackImageURL
	}
	return &Renderer{store: store, fallbackImage: fallbackImage, log: log}
}

// Render reads the session payload of sessionID. Missing image and file
// name fall back independently; the demo record is always overlaid.
func (r *Renderer) Render(ctx context.Context, sessionID string) (View, error) {
	payload, err := session.ReadPayload(ctx, r.store, sessionID)
	if err != nil {
		return View{}, err
	}

	result, err := DemoResult()
	if err != nil {
		return View{}, err
	}
	chart, err := ChartSlices()
	if err != nil {
		return View{}, err
	}

	v := View{
		ImageSrc: payload.ImageData,
		FileName: payload.FileName,
		Result:   result,
		Chart:    chart,
	}
	if v.ImageSrc == "" {
		v.ImageSrc = r.fallbackImage
	}
	if v.FileName == "" {
		v.FileName = domain.DemoFileName
	}
	v.Embedded = strings.HasPrefix(v.ImageSrc, "data:")

	r.log.Debug("Results rendered",
		zap.String("file", v.FileName),
		zap.Bool("embedded", v.Embedded),
		zap.Bool("fallback_image", payload.ImageData == ""))

	return v, nil
}
