package pdf

import (
	"sort"
	"strings"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

// Glyph is a positioned run of text as emitted by the PDF content stream.
type Glyph struct {
	X        float64
	W        float64
	FontSize float64
	S        string
}

// Line is one baseline of glyphs.
type Line struct {
	Y      float64
	Glyphs []Glyph
}

// Layout turns positioned glyphs into page text and tables. Gaps are
// measured in multiples of the glyph font size.
type Layout struct {
	// SpaceGap separates words within a cell.
	SpaceGap float64
	// CellGap separates table cells.
	CellGap float64
	// MinTableRows is the shortest run of aligned rows treated as a table.
	MinTableRows int
}

func DefaultLayout() Layout {
	return Layout{SpaceGap: 0.15, CellGap: 1.2, MinTableRows: 2}
}

// Apply returns the page text (one line per row, cells joined by a space)
// and every run of consecutive rows sharing the same number (>= 2) of cells.
func (l Layout) Apply(lines []Line) (string, []domain.Table) {
	var text strings.Builder
	var tables []domain.Table
	var run domain.Table

	flush := func() {
		if len(run) >= l.MinTableRows {
			tables = append(tables, run)
		}
		run = nil
	}

	for _, line := range lines {
		cells := l.cells(line.Glyphs)
		if len(cells) == 0 {
			continue
		}
		if text.Len() > 0 {
			text.WriteByte('\n')
		}
		text.WriteString(strings.Join(cells, " "))

		if len(cells) < 2 {
			flush()
			continue
		}
		if len(run) > 0 && len(run[0]) != len(cells) {
			flush()
		}
		run = append(run, cells)
	}
	flush()
	return text.String(), tables
}

func (l Layout) cells(glyphs []Glyph) []string {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := append([]Glyph(nil), glyphs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var cells []string
	var cell strings.Builder
	end := sorted[0].X
	for i, g := range sorted {
		if i > 0 {
			size := g.FontSize
			if size <= 0 {
				size = 10
			}
			gap := g.X - end
			switch {
			case gap >= l.CellGap*size:
				if s := strings.TrimSpace(cell.String()); s != "" {
					cells = append(cells, s)
				}
				cell.Reset()
			case gap >= l.SpaceGap*size && !strings.HasSuffix(cell.String(), " ") && !strings.HasPrefix(g.S, " "):
				cell.WriteByte(' ')
			}
		}
		cell.WriteString(g.S)
		if e := g.X + g.W; e > end {
			end = e
		}
	}
	if s := strings.TrimSpace(cell.String()); s != "" {
		cells = append(cells, s)
	}
	return cells
}
