package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// An explicit path that does not exist is a real error.
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultMappingFile, cfg.MappingFile)
	assert.Equal(t, DefaultIntegrationRef, cfg.IntegrationRef)
	assert.Equal(t, DefaultMaxCandidates, cfg.MaxCandidates)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diffstack.yaml")

	content := `repository: /srv/repos/widgets
mapping_file: /var/lib/diffstack/mapping
integration_ref: origin/main
max_candidates: 50
logging:
  level: debug
  format: json
metrics:
  listen: ":9464"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/repos/widgets", cfg.Repository)
	assert.Equal(t, "/var/lib/diffstack/mapping", cfg.MappingFile)
	assert.Equal(t, "origin/main", cfg.IntegrationRef)
	assert.Equal(t, 50, cfg.MaxCandidates)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":9464", cfg.Metrics.Listen)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("DIFFSTACK_INTEGRATION_REF", "origin/trunk")
	t.Setenv("DIFFSTACK_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "origin/trunk", cfg.IntegrationRef)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			MaxCandidates: 0,
			Logging:       LoggingConfig{Level: "info", Format: "text"},
		}
	}

	cfg := base()
	cfg.MaxCandidates = -1
	assert.ErrorIs(t, cfg.Validate(), ErrNegativeMaxCandidates)

	cfg = base()
	cfg.Logging.Level = "loud"
	assert.ErrorIs(t, cfg.Validate(), ErrBadLogLevel)

	cfg = base()
	cfg.Logging.Format = "xml"
	assert.ErrorIs(t, cfg.Validate(), ErrBadLogFormat)
}
