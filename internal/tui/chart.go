package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/logdesk/internal/model"
)

const (
	chartLegendWidth = 18
	chartMinWidth    = 12
)

// renderTypeChart draws one bar per log type next to a legend of the
// running counters.
func renderTypeChart(counts model.Counts, width, height int) string {
	if height < 3 {
		height = 3
	}
	chartWidth := width - chartLegendWidth - 2
	if chartWidth < chartMinWidth {
		chartWidth = chartMinWidth
	}
	barWidth := max(1, (chartWidth-2)/3)

	info := counts.Total - counts.Errors - counts.Successes
	if info < 0 {
		info = 0
	}

	typeData := []struct {
		name  string
		count int
		color lipgloss.Color
	}{
		{"INFO", info, logTypeColor(model.LogInfo)},
		{"SUCCESS", counts.Successes, logTypeColor(model.LogSuccess)},
		{"ERROR", counts.Errors, logTypeColor(model.LogError)},
	}

	bc := barchart.New(chartWidth, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(barWidth),
		barchart.WithNoAxis(),
	)
	for _, td := range typeData {
		style := lipgloss.NewStyle().Foreground(td.color).Background(td.color)
		bc.Push(barchart.BarData{
			Label: "",
			Values: []barchart.BarValue{
				{Name: td.name, Value: float64(td.count), Style: style},
			},
		})
	}
	bc.Draw()

	legendLines := make([]string, 0, height)
	for _, td := range typeData {
		label := fmt.Sprintf("%-8s%8d", td.name+":", td.count)
		legendLines = append(legendLines, lipgloss.NewStyle().Foreground(td.color).Render(label))
	}
	legendLines = append(legendLines,
		helpStyle.Render(strings.Repeat("─", chartLegendWidth-2)),
		fmt.Sprintf("%-8s%8d", "TOTAL:", counts.Total),
	)
	for len(legendLines) < height {
		legendLines = append(legendLines, "")
	}

	legend := lipgloss.NewStyle().Width(chartLegendWidth).Render(strings.Join(legendLines[:height], "\n"))
	return lipgloss.JoinHorizontal(lipgloss.Top, bc.View(), "  ", legend)
}
