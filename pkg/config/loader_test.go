package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sysdaemon.yaml"), []byte(body), 0o644))
}

func TestInitializeAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
trigger_llm:
  backend_url: "http://trigger.local"
review_llm:
  backend_url: "http://review.local"
meta_llm:
  backend_url: "http://meta.local"
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Trigger.IntervalSeconds)
	assert.Equal(t, 60, cfg.Review.IntervalSeconds)
	assert.Equal(t, 131_072, cfg.Meta.ContextBudget)
	assert.Equal(t, AutonomyObserve, cfg.Executor.AutonomyLevel)
	assert.NotEmpty(t, cfg.Trigger.LogRules)
}

func TestInitializeMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Trigger.IntervalSeconds)
}

func TestInitializeRejectsInvalidAutonomy(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
executor:
  autonomy_level: "yolo"
`)
	_, err := Initialize(context.Background(), dir)
	require.ErrorIs(t, err, ErrValidationFailed)
}

func TestProtectedServicesAlwaysIncludesHardCodedSet(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
executor:
  protected_services: ["my-custom-db"]
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Contains(t, cfg.Executor.ProtectedServices, "my-custom-db")
	assert.Contains(t, cfg.Executor.ProtectedServices, "sshd")
	assert.Contains(t, cfg.Executor.ProtectedServices, "systemd")
}

func TestInitializeRejectsMalformedBackendURL(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
trigger_llm:
  backend_url: "::not-a-url"
`)
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}
