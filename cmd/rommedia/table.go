package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// pathWidth bounds path columns so hashes and status stay on screen.
const pathWidth = 48

type column struct {
	title    string
	align    text.Align
	maxWidth int
}

func left(title string) column  { return column{title: title, align: text.AlignLeft} }
func right(title string) column { return column{title: title, align: text.AlignRight} }

// wrapped soft-wraps cells wider than width.
func (c column) wrapped(width int) column {
	c.maxWidth = width
	return c
}

// renderTable draws rows under columns. Missing cells render empty; a
// non-empty footer is drawn under the body.
func renderTable(columns []column, rows [][]string, footer ...string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault

	tw.AppendHeader(cells(columns, func(i int) string { return columns[i].title }))
	for _, row := range rows {
		tw.AppendRow(cells(columns, func(i int) string { return cell(row, i) }))
	}
	if len(footer) > 0 {
		tw.AppendFooter(cells(columns, func(i int) string { return cell(footer, i) }))
	}

	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		configs[i] = table.ColumnConfig{
			Number:           i + 1,
			Align:            c.align,
			AlignHeader:      text.AlignLeft,
			AlignFooter:      c.align,
			WidthMax:         c.maxWidth,
			WidthMaxEnforcer: text.WrapSoft,
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func cells(columns []column, value func(int) string) table.Row {
	row := make(table.Row, len(columns))
	for i := range columns {
		row[i] = value(i)
	}
	return row
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
