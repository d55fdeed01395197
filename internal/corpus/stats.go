package corpus

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aladics/code-change-repr/pkg/node"
)

// DefaultTopTokens bounds stats output.
const DefaultTopTokens = 25

// xAxisRotate tilts crowded token labels.
const xAxisRotate = 60

// chartWidth and chartHeight size the standalone HTML chart.
const (
	chartWidth  = "1200px"
	chartHeight = "500px"
)

// TokenCount pairs a token with its document frequency.
type TokenCount struct {
	Token string
	Count int
}

// TopTokens returns the n most document-frequent tokens, all of them when
// n is not positive.
func TopTokens(v *Vocabulary, n int) []TokenCount {
	tokens := v.Tokens()
	if n > 0 && len(tokens) > n {
		tokens = tokens[:n]
	}

	return tokens
}

// RenderTable renders token counts as a bordered text table.
func RenderTable(title string, counts []TokenCount) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(title)
	tbl.AppendHeader(table.Row{"Token", "Documents"})

	for _, entry := range counts {
		tbl.AppendRow(table.Row{entry.Token, entry.Count})
	}

	tbl.AppendFooter(table.Row{"Tokens", len(counts)})

	return tbl.Render()
}

// DepthHistogram counts nodes per depth over a full walk of the tree.
func DepthHistogram(root node.Node) map[int]int {
	hist := make(map[int]int)

	for n := range node.Walk(root) {
		hist[len(node.Ancestors(n))]++
	}

	return hist
}

// WriteBarChart renders token counts as a standalone HTML bar chart.
func WriteBarChart(w io.Writer, title string, counts []TokenCount) error {
	labels := make([]string, len(counts))
	data := make([]opts.BarData, len(counts))

	for i, entry := range counts {
		labels[i] = entry.Token
		data[i] = opts.BarData{Value: entry.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     chartWidth,
			Height:    chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: xAxisRotate, Interval: "0"},
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Documents"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("Documents", data)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}
