package xlsx

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

// Reader maps every worksheet of a spreadsheet catalog to one page whose
// text is the sheet name and whose only table is the sheet's used range.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

func (r *Reader) Read(ctx context.Context, name string, body io.Reader) (*domain.Document, error) {
	book, err := excelize.OpenReader(body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMalformedDocument, "open xlsx", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	doc := &domain.Document{Name: name, Pages: make([]domain.Page, 0, len(sheets))}
	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, domain.WrapError(domain.ErrMalformedDocument, "read xlsx sheet", fmt.Errorf("%s: %w", sheet, err))
		}

		page := domain.Page{Number: i + 1, Text: sheet}
		if table := normalizeRows(rows); len(table) > 0 {
			page.Tables = []domain.Table{table}
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

// normalizeRows drops blank rows and pads the rest to a common width, since
// GetRows trims trailing empty cells.
func normalizeRows(rows [][]string) domain.Table {
	width := 0
	kept := make([][]string, 0, len(rows))
	for _, row := range rows {
		blank := true
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}
		kept = append(kept, row)
		width = max(width, len(row))
	}

	table := make(domain.Table, 0, len(kept))
	for _, row := range kept {
		padded := make([]string, width)
		for i, cell := range row {
			padded[i] = strings.TrimSpace(cell)
		}
		table = append(table, padded)
	}
	return table
}
