package cliui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/gosuri/uitable"
)

// DefaultCellWidth bounds the printable width of a table cell.
const DefaultCellWidth = 48

// Table is a column-aligned table with a styled header row. Cells are plain
// text; the header is styled after alignment.
type Table struct {
	t     *uitable.Table
	width int
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	t := uitable.New()
	t.Separator = "  "

	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = strings.ToUpper(h)
	}
	t.AddRow(cells...)

	return &Table{t: t, width: DefaultCellWidth}
}

// AddRow appends a row. Cells wider than the cell width are truncated on
// their printable width.
func (t *Table) AddRow(cells ...string) {
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = Truncate(c, t.width)
	}
	t.t.AddRow(row...)
}

// Fprint writes the table followed by a newline.
func (t *Table) Fprint(w io.Writer) {
	fmt.Fprintln(w, t.String())
}

func (t *Table) String() string {
	header, rest, _ := strings.Cut(t.t.String(), "\n")
	if rest == "" {
		return HeaderStyle.Render(header)
	}
	return HeaderStyle.Render(header) + "\n" + rest
}

// Truncate shortens s to width printable cells, appending an ellipsis.
func Truncate(s string, width int) string {
	if ansi.StringWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}
