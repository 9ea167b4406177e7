// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingDirectory(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestLoad_ReadsAndTrims(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deepseek-api-key"), []byte("  sk-test-123\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "semantic-scholar-api-key"), []byte("s2key"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), []byte("   \n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o600))

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "sk-test-123", s["deepseek-api-key"])
	assert.Equal(t, "s2key", s["semantic-scholar-api-key"])
	assert.NotContains(t, s, "empty")
	assert.NotContains(t, s, ".hidden")
}

func TestLoad_SkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, s)
}
