package config

import (
	"testing"

	"gosuperior/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "SUPERIOR_INTENSITY", "SUPERIOR_INCREASE", "SUPERIOR_WORKERS",
		"GENOTYPE_COLUMN", "ENVIRONMENT_COLUMN", "REGION_COLUMN", "TRAIT_COLUMN", "EXPORT_DIR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, 0.2, cfg.Selection.Intensity)
	assert.True(t, cfg.Selection.Increase)
	assert.GreaterOrEqual(t, cfg.Engine.Workers, 1)
	assert.Equal(t, "gen", cfg.Columns.Genotype)
	assert.Equal(t, "env", cfg.Columns.Environment)
	assert.Equal(t, "y", cfg.Columns.Trait)
	assert.False(t, cfg.Columns.UsesRegion())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/trials")
	t.Setenv("SUPERIOR_INTENSITY", "0.1")
	t.Setenv("SUPERIOR_INCREASE", "false")
	t.Setenv("SUPERIOR_WORKERS", "3")
	t.Setenv("REGION_COLUMN", "reg")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 0.1, cfg.Selection.Spec().Intensity)
	assert.False(t, cfg.Selection.Spec().Increase)
	assert.Equal(t, 3, cfg.Engine.Workers)
	assert.True(t, cfg.Columns.UsesRegion())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"intensity not a number", "SUPERIOR_INTENSITY", "high"},
		{"intensity out of range", "SUPERIOR_INTENSITY", "1.5"},
		{"bad bool", "SUPERIOR_INCREASE", "maybe"},
		{"zero workers", "SUPERIOR_WORKERS", "0"},
		{"duplicate column", "REGION_COLUMN", "env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
