// Package format renders demogen results as terminal or Markdown tables.
package format

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // box-drawn terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ColumnConfig controls per-column formatting.
type ColumnConfig struct {
	Number     int  // 1-based column index
	AlignRight bool // numbers read better right-aligned
	MaxWidth   int  // wrap content beyond this width (0 = unlimited)
}

// Table is a table under construction. Build it once, then render it with
// String in the Mode it was created with.
type Table struct {
	w     table.Writer
	mode  Mode
	title string
}

// NewTable returns an empty Table rendering in m.
func NewTable(m Mode) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &Table{w: w, mode: m}
}

// Title sets a caption rendered on its own line above the table.
func (t *Table) Title(s string) *Table {
	t.title = s
	return t
}

// Header sets the column headers.
func (t *Table) Header(cols ...string) *Table {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	t.w.AppendHeader(row)
	return t
}

// Row appends a data row.
func (t *Table) Row(vals ...any) *Table {
	t.w.AppendRow(table.Row(vals))
	return t
}

// Footer appends a footer row, e.g. totals.
func (t *Table) Footer(vals ...any) *Table {
	t.w.AppendFooter(table.Row(vals))
	return t
}

// Columns applies per-column configuration.
func (t *Table) Columns(cfgs ...ColumnConfig) *Table {
	out := make([]table.ColumnConfig, len(cfgs))
	for i, c := range cfgs {
		align := text.AlignDefault
		if c.AlignRight {
			align = text.AlignRight
		}
		out[i] = table.ColumnConfig{Number: c.Number, Align: align, WidthMax: c.MaxWidth}
	}
	t.w.SetColumnConfigs(out)
	return t
}

// Len is the number of data rows.
func (t *Table) Len() int { return t.w.Length() }

// String renders the table.
func (t *Table) String() string {
	var head, body string
	if t.mode == Markdown {
		body = t.w.RenderMarkdown()
		if t.title != "" {
			head = "**" + t.title + "**\n\n"
		}
	} else {
		body = t.w.Render()
		if t.title != "" {
			head = t.title + "\n"
		}
	}
	return head + body
}
