package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/alphaaudio/internal/catalog"
	"github.com/vampirenirmal/alphaaudio/internal/config"
)

func TestScaffoldProducesLoadableFiles(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	require.NoError(t, scaffold(&out, dir, false))
	assert.Contains(t, out.String(), "created "+filepath.Join(dir, "config.yaml"))

	t.Setenv("GEMINI_API_KEY", "AIzaSy-test-key-000000000000000000")
	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Paths.DataDir)
	assert.Equal(t, "AIzaSy-test-key-000000000000000000", cfg.AI.APIKey)

	assert.Equal(t, catalog.DefaultModels, catalog.LoadModelList(cfg.AI.ModelsFile, nil))

	templates := catalog.LoadTemplates(cfg.Paths.PromptsFile, nil)
	assert.Equal(t, catalog.DefaultTemplates(), templates)

	cat, err := catalog.Load(context.Background(), cfg.Paths.DataDir, nil)
	require.NoError(t, err)
	for _, c := range catalog.Categories {
		assert.False(t, cat.Missing(c), c)
		assert.Positive(t, cat.Len(c), c)
		assert.Zero(t, cat.Rejected(c), c)
	}
}

func TestScaffoldKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.json")
	require.NoError(t, os.WriteFile(path, []byte(`["custom-model"]`), 0644))

	var out bytes.Buffer
	require.NoError(t, scaffold(&out, dir, false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["custom-model"]`, string(data))
	assert.Contains(t, out.String(), "kept    "+path)

	out.Reset()
	require.NoError(t, scaffold(&out, dir, true))
	assert.Equal(t, catalog.DefaultModels, catalog.LoadModelList(path, nil))
}
