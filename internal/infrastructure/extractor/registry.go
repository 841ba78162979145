package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/catalog-assistant/internal/infrastructure/extractor/xlsx"
)

// Registry dispatches to a DocumentReader by file extension.
type Registry struct {
	readers map[string]ports.DocumentReader
}

func NewRegistry() *Registry {
	return &Registry{readers: map[string]ports.DocumentReader{
		".pdf":  pdf.NewReader(),
		".xlsx": xlsx.NewReader(),
	}}
}

func (r *Registry) Register(ext string, reader ports.DocumentReader) {
	r.readers[strings.ToLower(ext)] = reader
}

func (r *Registry) Read(ctx context.Context, name string, body io.Reader) (*domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(name))
	reader, ok := r.readers[ext]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read catalog", fmt.Errorf("unsupported file type %q", ext))
	}
	return reader.Read(ctx, name, body)
}
