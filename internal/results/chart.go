package results

import (
	"fmt"
	"io"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Dmitryqr/defect-detection-website/internal/domain"
)

const (
	ChartWidth  = 480
	ChartHeight = 480
)

// RenderChart draws the defect distribution as a PNG pie chart.
func RenderChart(w io.Writer, slices []domain.ChartSlice, width, height int) error {
	if len(slices) == 0 {
		return fmt.Errorf("no chart data")
	}

	values := make([]chart.Value, 0, len(slices))
	for _, s := range slices {
		values = append(values, chart.Value{
			Value: s.Percent,
			Label: fmt.Sprintf("%s %g%%", s.Label, s.Percent),
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(strings.TrimPrefix(s.Color, "#")),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 2,
			},
		})
	}

	pie := chart.PieChart{
		Width:  width,
		Height: height,
		Values: values,
	}

	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
