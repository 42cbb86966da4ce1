package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "speech_chunks", cfg.VectorDB.Collection)
	assert.Equal(t, 5, cfg.Pipeline.Expansion.MinVariants)
	assert.Equal(t, 7, cfg.Pipeline.Expansion.MaxVariants)
	assert.Equal(t, 15, cfg.Pipeline.Expansion.MinLength)
	assert.Equal(t, 120, cfg.Pipeline.Expansion.MaxLength)
	assert.Equal(t, 10, cfg.Pipeline.Retrieval.TopKPerQuery)
	assert.True(t, cfg.Pipeline.Synthesis.RequireBothSides)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plenumqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
pipeline:
  synthesis:
    top_chunks: 12
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Pipeline.Synthesis.TopChunks)
	// untouched sections keep their defaults
	assert.Equal(t, 10, cfg.VectorDB.TopK)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NLP_SERVICE_URL", "http://localhost:9000")
	t.Setenv("QDRANT_HOST", "qdrant-test")
	t.Setenv("QDRANT_PORT", "7333")
	t.Setenv("REDIS_ADDR", "localhost:6390")
	t.Setenv("AUDIT_DIR", "/tmp/audit-test")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.NLPService.BaseURL)
	assert.Equal(t, "http://localhost:9000", cfg.Embeddings.BaseURL)
	assert.Equal(t, "qdrant-test", cfg.VectorDB.Host)
	assert.Equal(t, 7333, cfg.VectorDB.Port)
	assert.Equal(t, "localhost:6390", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "/tmp/audit-test", cfg.Audit.Dir)
}

func TestPathHonorsEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/etc/custom.yaml")
	assert.Equal(t, "/etc/custom.yaml", Path())
}
