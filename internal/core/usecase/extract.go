package usecase

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

const (
	minTextChunkRunes = 50
	minHeadingRunes   = 5
	maxHeadingRunes   = 80
	trademarkMark     = "®"
)

// ChunkExtractor turns a parsed catalog document into page-scoped chunks.
type ChunkExtractor struct{}

func NewChunkExtractor() *ChunkExtractor {
	return &ChunkExtractor{}
}

// Extract emits, per page and in page order, the page text chunk (if long
// enough) followed by one chunk per surviving table.
func (e *ChunkExtractor) Extract(doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.WrapError(domain.ErrMalformedDocument, "extract chunks", errors.New("nil document"))
	}
	source := filepath.Base(doc.Name)

	chunks := make([]domain.Chunk, 0, len(doc.Pages)*2)
	for _, page := range doc.Pages {
		if page.Number < 1 {
			return nil, domain.WrapError(
				domain.ErrMalformedDocument,
				"extract chunks",
				fmt.Errorf("invalid page number %d", page.Number),
			)
		}

		text := strings.TrimSpace(page.Text)
		if utf8.RuneCountInString(text) > minTextChunkRunes {
			chunks = append(chunks, domain.Chunk{
				Content:     text,
				Page:        page.Number,
				ContentType: domain.ContentText,
				Source:      source,
			})
		}

		tables := renderTables(page.Tables)
		if len(tables) == 0 {
			continue
		}
		heading := ExtractHeading(page.Text)
		for _, md := range tables {
			content := md
			if heading != "" {
				content = "Product: " + heading + "\n\n" + md
			}
			chunks = append(chunks, domain.Chunk{
				Content:     content,
				Page:        page.Number,
				ContentType: domain.ContentTable,
				Source:      source,
			})
		}
	}
	return chunks, nil
}

func renderTables(tables []domain.Table) []string {
	out := make([]string, 0, len(tables))
	for _, table := range tables {
		if len(table) < 2 || len(table[0]) < 2 {
			continue
		}
		if md := TableToMarkdown(table); md != "" {
			out = append(out, md)
		}
	}
	return out
}

// TableToMarkdown renders a header row, a separator row and the body rows.
func TableToMarkdown(table domain.Table) string {
	if len(table) == 0 || len(table[0]) == 0 {
		return ""
	}

	header := table[0]
	lines := make([]string, 0, len(table)+1)
	lines = append(lines, markdownRow(header))

	separator := make([]string, len(header))
	for i := range separator {
		separator[i] = "---"
	}
	lines = append(lines, "| "+strings.Join(separator, " | ")+" |")

	for _, row := range table[1:] {
		lines = append(lines, markdownRow(row))
	}
	return strings.Join(lines, "\n")
}

func markdownRow(cells []string) string {
	cleaned := make([]string, len(cells))
	for i, cell := range cells {
		cleaned[i] = cleanCell(cell)
	}
	return "| " + strings.Join(cleaned, " | ") + " |"
}

func cleanCell(cell string) string {
	cell = strings.ReplaceAll(cell, "\r\n", " ")
	cell = strings.ReplaceAll(cell, "\n", " ")
	return strings.TrimSpace(cell)
}

// ExtractHeading picks the first line, top to bottom, that carries a
// trademark mark or is short enough to be a product title. Pure-numeric and
// very short lines are skipped.
func ExtractHeading(pageText string) string {
	for _, line := range strings.Split(pageText, "\n") {
		line = strings.TrimSpace(line)
		n := utf8.RuneCountInString(line)
		if n < minHeadingRunes || isNumeric(line) {
			continue
		}
		if strings.Contains(line, trademarkMark) || n < maxHeadingRunes {
			return line
		}
	}
	return ""
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
