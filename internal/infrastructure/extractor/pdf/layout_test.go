package pdf

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

// word lays out s as one glyph per rune, 5pt wide, starting at x.
func word(x float64, s string) []Glyph {
	out := make([]Glyph, 0, len(s))
	for _, r := range s {
		out = append(out, Glyph{X: x, W: 5, FontSize: 10, S: string(r)})
		x += 5
	}
	return out
}

func line(y float64, parts ...[]Glyph) Line {
	l := Line{Y: y}
	for _, p := range parts {
		l.Glyphs = append(l.Glyphs, p...)
	}
	return l
}

func TestLayoutJoinsWordsAndSplitsCells(t *testing.T) {
	lines := []Line{
		line(700, word(50, "Omnifix®"), word(92, "syringes")),
		line(680, word(50, "Art.-Nr."), word(200, "Volume")),
		line(660, word(50, "4606051V"), word(200, "2 ml")),
		line(640, word(50, "4606108V"), word(200, "10 ml")),
	}

	text, tables := DefaultLayout().Apply(lines)

	assert.Equal(t, "Omnifix® syringes\nArt.-Nr. Volume\n4606051V 2 ml\n4606108V 10 ml", text)
	require.Len(t, tables, 1)
	assert.Equal(t, domain.Table{
		{"Art.-Nr.", "Volume"},
		{"4606051V", "2 ml"},
		{"4606108V", "10 ml"},
	}, tables[0])
}

func TestLayoutBreaksTablesOnColumnCountChange(t *testing.T) {
	lines := []Line{
		line(700, word(50, "a"), word(150, "b")),
		line(690, word(50, "c"), word(150, "d")),
		line(680, word(50, "x"), word(150, "y"), word(250, "z")),
		line(670, word(50, "only one row of three")),
		line(660, word(50, "e"), word(150, "f"), word(250, "g")),
	}

	_, tables := DefaultLayout().Apply(lines)
	require.Len(t, tables, 1)
	assert.Equal(t, domain.Table{{"a", "b"}, {"c", "d"}}, tables[0])
}

func TestLayoutIgnoresEmptyLinesAndUnsortedGlyphs(t *testing.T) {
	reversed := word(50, "abc")
	reversed[0], reversed[2] = reversed[2], reversed[0]
	text, tables := DefaultLayout().Apply([]Line{{Y: 10}, line(5, reversed)})
	assert.Equal(t, "abc", text)
	assert.Empty(t, tables)
}

func TestReadRejectsNonPDF(t *testing.T) {
	_, err := NewReader().Read(context.Background(), "catalog.pdf", strings.NewReader("not a pdf"))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrMalformedDocument), "got %v", err)
}
