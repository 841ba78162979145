package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/catalog-assistant/internal/core/usecase"
)

func TestParseOverridesOnlyGivenPrompts(t *testing.T) {
	set, err := Parse([]byte("grader: |\n  Reply with indices only.\n"))
	require.NoError(t, err)

	defaults := usecase.DefaultPrompts()
	assert.Equal(t, "Reply with indices only.\n", set.Grader)
	assert.Equal(t, defaults.Router, set.Router)
	assert.Equal(t, defaults.Generator, set.Generator)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("grade: typo\n"))
	assert.Error(t, err)
}

func TestLoadEmptyPathAndEmptyFile(t *testing.T) {
	set, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, usecase.DefaultPrompts(), set)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	set, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, usecase.DefaultPrompts(), set)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
