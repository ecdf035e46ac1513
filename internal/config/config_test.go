package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jarnest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, ""))
		require.NoError(t, err)

		assert.Equal(t, "jarnest.db", cfg.Database)
		assert.Equal(t, ".jar", cfg.Suffix)
		assert.Equal(t, int64(128<<20), cfg.MaxEntrySize)
		assert.Empty(t, cfg.Classpath)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("File", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
database: /tmp/catalog.db
suffix: .war
max_entry_size: 1024
classpath:
  - a.war
  - b.war
log_level: debug
log_format: json
`))
		require.NoError(t, err)

		assert.Equal(t, "/tmp/catalog.db", cfg.Database)
		assert.Equal(t, ".war", cfg.Suffix)
		assert.Equal(t, int64(1024), cfg.MaxEntrySize)
		assert.Equal(t, []string{"a.war", "b.war"}, cfg.Classpath)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
	})

	t.Run("Environment", func(t *testing.T) {
		t.Setenv("JARNEST_LOG_LEVEL", "warn")
		t.Setenv("JARNEST_DATABASE", "env.db")

		cfg, err := Load(writeConfig(t, "log_level: debug\n"))
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, "env.db", cfg.Database)
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("Invalid", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"EmptySuffix", "suffix: ''\n"},
			{"SuffixWithoutDot", "suffix: jar\n"},
			{"SuffixWithSeparator", "suffix: .j!/ar\n"},
			{"NegativeCeiling", "max_entry_size: -1\n"},
			{"LogLevel", "log_level: verbose\n"},
			{"LogFormat", "log_format: xml\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := Load(writeConfig(t, tt.body))
				assert.Error(t, err)
			})
		}
	})
}
