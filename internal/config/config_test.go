package config

import (
	"os"
	"path/filepath"
	"testing"

	"triadbalance/domain/balance"
	"triadbalance/internal/connectivity"
	"triadbalance/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Analysis.WindowLength)
	assert.True(t, cfg.Analysis.DropUndefined)
	assert.Equal(t, balance.ConventionRaw, cfg.Analysis.CodeConvention())
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRIAD_WINDOW_LENGTH", "45")
	t.Setenv("TRIAD_METHOD", "spearman")
	t.Setenv("TRIAD_MISSING", "complete")
	t.Setenv("TRIAD_SUBNETWORK", "0, 3,7")
	t.Setenv("TRIAD_CONVENTION", "remapped")
	t.Setenv("TRIAD_SEED", "1234")
	t.Setenv("TRIAD_DROP_UNDEFINED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	a := cfg.Analysis
	assert.Equal(t, 45, a.WindowLength)
	assert.Equal(t, []int{0, 3, 7}, a.Subnetwork)
	assert.Equal(t, uint64(1234), a.Seed)
	assert.False(t, a.DropUndefined)
	assert.Equal(t, balance.ConventionRemapped, a.CodeConvention())

	opts := a.ConnectivityOptions()
	assert.Equal(t, connectivity.MethodSpearman, opts.Method)
	assert.Equal(t, connectivity.CompleteCase, opts.Missing)
	assert.Equal(t, 45, opts.WindowLength)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"TRIAD_WINDOW_LENGTH": "1",
		"TRIAD_METHOD":        "kendall",
		"TRIAD_MISSING":       "impute",
		"TRIAD_CONVENTION":    "legacy",
		"TRIAD_MIN_ABS":       "1.5",
		"TRIAD_SUBNETWORK":    "1,-2,3",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triad.yaml")
	content := `
analysis:
  window_length: 20
  method: spearman
  subnetwork: [1, 2, 5]
  surrogates: 3
server:
  port: "9090"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Analysis.WindowLength)
	assert.Equal(t, "spearman", cfg.Analysis.Method)
	assert.Equal(t, []int{1, 2, 5}, cfg.Analysis.Subnetwork)
	assert.Equal(t, 3, cfg.Analysis.Surrogates)
	assert.Equal(t, "9090", cfg.Server.Port)
	// untouched fields keep defaults
	assert.Equal(t, "pairwise", cfg.Analysis.Missing)

	t.Setenv("TRIAD_WINDOW_LENGTH", "25")
	cfg, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Analysis.WindowLength)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis: [not, a, map"), 0o644))
	_, err = LoadFile(path)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
