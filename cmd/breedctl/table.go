package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// traitsWidth keeps the characteristics column from pushing the table past a
// typical terminal width.
const traitsWidth = 48

// printTable renders header and rows straight into out. Terminals get rounded
// borders, pipes and files get plain ASCII.
func printTable(out io.Writer, header table.Row, rows []table.Row, columns ...table.ColumnConfig) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	if isTerminal(out) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}
	if len(header) > 0 {
		tw.AppendHeader(header)
	}
	tw.AppendRows(rows)
	if len(columns) > 0 {
		tw.SetColumnConfigs(columns)
	}
	tw.Render()
}

// printFields shows a single record as label/value pairs, labels right-aligned.
func printFields(out io.Writer, fields [][2]string) {
	rows := make([]table.Row, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, table.Row{f[0], f[1]})
	}
	printTable(out, nil, rows, table.ColumnConfig{Number: 1, Align: text.AlignRight})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
