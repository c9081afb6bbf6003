package results

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// WriteReport writes v as a Markdown document.
func WriteReport(w io.Writer, v View) error {
	md := markdown.NewMarkdown(w)

	md.H1("Defect Detection Report")
	md.PlainText("")

	image := v.ImageSrc
	if v.Embedded {
		image = "embedded upload"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"File", v.FileName},
			{"Image", image},
			{"Total area", v.Result.Stats.TotalArea},
			{"Confidence", v.Result.Stats.Confidence},
			{"Processing time", v.Result.Stats.ProcessingTime},
		},
	})
	md.PlainText("")

	md.H2("Defects")
	md.PlainText("")
	rows := make([][]string, 0, len(v.Result.Defects)+1)
	for _, d := range v.Result.Defects {
		rows = append(rows, []string{d.Type, strconv.Itoa(d.Count), strings.ToUpper(string(d.Severity))})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(v.TotalDefects()) + "**", ""})
	md.Table(markdown.TableSet{
		Header: []string{"Type", "Count", "Severity"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(v.Chart) > 0 {
		md.H2("Distribution")
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Surface condition"),
			piechart.WithShowData(true),
		)
		for _, s := range v.Chart {
			chart.LabelAndIntValue(s.Label, uint64(s.Percent))
		}
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	md.Note("Demo data: the statistics are not derived from the uploaded image.")

	return md.Build()
}
