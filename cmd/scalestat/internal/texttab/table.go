// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package texttab lays out aligned plain-text tables.
package texttab

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"
)

// A Table is a grid of cells that can be formatted with aligned
// columns. Cells are added row by row with Row and Cell.
type Table struct {
	cells []textCell
	cols  int

	curRow, curCol int
}

type textCell struct {
	row, col   int
	value      string
	leftMargin string
	alignment  align
}

// A CellOption changes how a cell is laid out.
type CellOption func(c *textCell)

// LeftMargin sets the separator printed before a cell. By default,
// every non-empty cell except the first in a row gets one space.
func LeftMargin(x string) CellOption {
	return func(c *textCell) {
		c.leftMargin = x
	}
}

// Cell alignments. The default is Left.
var (
	Left  CellOption = func(c *textCell) { c.alignment = alignLeft }
	Right CellOption = func(c *textCell) { c.alignment = alignRight }
)

type align int

const (
	alignLeft align = iota
	alignRight
)

func (a align) lpad(s string, w int) string {
	if a == alignRight {
		return fmt.Sprintf("%*s", w, s)
	}
	return s
}

// Row starts a new row. The first call starts the first row.
func (t *Table) Row() *Table {
	if len(t.cells) > 0 {
		t.curRow++
	}
	t.curCol = 0
	return t
}

// Col moves to column col of the current row. It panics if col is
// before the current column.
func (t *Table) Col(col int) *Table {
	if col < t.curCol {
		panic(fmt.Sprintf("cannot move from column %d to earlier column %d", t.curCol, col))
	}
	t.curCol = col
	return t
}

// Cell adds a cell at the current column and advances to the next.
func (t *Table) Cell(value string, opts ...CellOption) *Table {
	lMargin := " "
	if t.curCol == 0 || len(value) == 0 {
		lMargin = ""
	}
	t.cells = append(t.cells, textCell{t.curRow, t.curCol, value, lMargin, alignLeft})
	for _, o := range opts {
		o(&t.cells[len(t.cells)-1])
	}
	t.curCol++
	if t.curCol > t.cols {
		t.cols = t.curCol
	}
	return t
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Format writes t to w. Trailing blanks are not written.
func (t *Table) Format(w io.Writer) error {
	lmargin := make([]int, t.cols)
	ws := make([]int, t.cols)
	for _, cell := range t.cells {
		lmargin[cell.col] = max(utf8.RuneCountInString(cell.leftMargin), lmargin[cell.col])
	}
	for _, cell := range t.cells {
		ws[cell.col] = max(ws[cell.col], utf8.RuneCountInString(cell.value)+lmargin[cell.col])
	}

	offs := make([]int, t.cols+1)
	off := 0
	for i, w := range ws {
		offs[i] = off
		off += w
	}
	offs[len(ws)] = off

	sort.SliceStable(t.cells, func(i, j int) bool {
		if t.cells[i].row != t.cells[j].row {
			return t.cells[i].row < t.cells[j].row
		}
		return t.cells[i].col < t.cells[j].col
	})
	row, off := 0, 0
	for _, cell := range t.cells {
		if strings.TrimSpace(cell.value) == "" && strings.TrimSpace(cell.leftMargin) == "" {
			continue
		}

		for cell.row > row {
			if _, err := fmt.Fprintf(w, "\n"); err != nil {
				return err
			}
			row++
			off = 0
		}

		spaces := offs[cell.col] - off
		if _, err := fmt.Fprintf(w, "%*s%*s", spaces, "", lmargin[cell.col], cell.leftMargin); err != nil {
			return err
		}
		off += spaces + lmargin[cell.col]

		tw := offs[cell.col+1] - offs[cell.col] - lmargin[cell.col]
		s := cell.alignment.lpad(cell.value, tw)
		if _, err := fmt.Fprintf(w, "%s", s); err != nil {
			return err
		}
		off += utf8.RuneCountInString(s)
	}
	if len(t.cells) > 0 {
		if _, err := fmt.Fprintf(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
