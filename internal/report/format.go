package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Format renders a summary as an ASCII table with one column per source.
func Format(summary Summary) string {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle("Wheel test summary")

	headers := table.Row{"PACKAGE"}
	configs := []table.ColumnConfig{{Number: 1, WidthMax: 40}}
	for i, name := range summary.Sources {
		headers = append(headers, name)
		configs = append(configs, table.ColumnConfig{
			Number:           i + 2,
			WidthMax:         80,
			WidthMaxEnforcer: text.WrapSoft,
		})
	}
	t.AppendHeader(headers)
	t.SetColumnConfigs(configs)

	for _, row := range summary.Rows {
		name := row.Package
		if row.Different {
			name += " *"
		}
		line := table.Row{name}
		for _, cell := range row.Cells {
			line = append(line, strings.Join(cell, " "))
		}
		t.AppendRow(line)
	}

	footer := table.Row{"TOTAL", fmt.Sprintf("%d passing, %d failing", summary.Passing, summary.Failing)}
	for range max(len(summary.Sources)-1, 0) {
		footer = append(footer, "")
	}
	t.AppendFooter(footer)

	switch {
	case summary.Failing > 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case summary.Passing > 0:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	default:
		t.SetStyle(table.StyleDefault)
	}

	t.Render()
	return buf.String()
}
