package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/catalog-assistant/internal/core/usecase"
)

// Load reads prompt overrides from a YAML file. Missing keys keep their
// built-in defaults; an empty path returns the defaults.
func Load(path string) (usecase.PromptSet, error) {
	defaults := usecase.DefaultPrompts()
	if path == "" {
		return defaults, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return usecase.PromptSet{}, fmt.Errorf("read prompts file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (usecase.PromptSet, error) {
	var overrides usecase.PromptSet
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&overrides); err != nil && !errors.Is(err, io.EOF) {
		return usecase.PromptSet{}, fmt.Errorf("parse prompts yaml: %w", err)
	}
	return overrides.Merge(usecase.DefaultPrompts()), nil
}
