package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

// Reader parses PDF catalogs into pages of text plus detected tables.
type Reader struct {
	layout Layout
}

func NewReader() *Reader {
	return &Reader{layout: DefaultLayout()}
}

func (r *Reader) Read(ctx context.Context, name string, body io.Reader) (doc *domain.Document, err error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read pdf body: %w", err)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = domain.WrapError(domain.ErrMalformedDocument, "parse pdf", fmt.Errorf("%s: %v", name, rec))
		}
	}()

	parsed, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrMalformedDocument, "parse pdf", err)
	}

	doc = &domain.Document{Name: name, Pages: make([]domain.Page, 0, parsed.NumPage())}
	for i := 1; i <= parsed.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := parsed.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, domain.WrapError(domain.ErrMalformedDocument, "read pdf page", fmt.Errorf("page %d: %w", i, err))
		}

		text, tables := r.layout.Apply(toLines(rows))
		doc.Pages = append(doc.Pages, domain.Page{Number: i, Text: text, Tables: tables})
	}
	return doc, nil
}

// toLines converts parser rows into top-to-bottom lines of left-to-right glyphs.
func toLines(rows pdf.Rows) []Line {
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		line := Line{Y: float64(row.Position)}
		for _, t := range row.Content {
			line.Glyphs = append(line.Glyphs, Glyph{X: t.X, W: t.W, FontSize: t.FontSize, S: t.S})
		}
		lines = append(lines, line)
	}
	// PDF y grows upwards.
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Y > lines[j].Y })
	return lines
}
