package mount

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot_WalksUpward(t *testing.T) {
	project := t.TempDir()
	marker, err := CreateRoot(project)
	require.NoError(t, err)

	nested := filepath.Join(project, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, marker, found)
}

func TestFindRoot_Missing(t *testing.T) {
	_, err := FindRoot(t.TempDir())
	var rerr *RootError
	assert.True(t, errors.As(err, &rerr))
}

func TestCreateRoot_Idempotent(t *testing.T) {
	project := t.TempDir()
	first, err := CreateRoot(project)
	require.NoError(t, err)
	second, err := CreateRoot(project)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, PolicyIgnore, cfg.OnCollision)
	assert.Equal(t, ".sto", cfg.DefaultSuffix)
	assert.True(t, cfg.ignoreFiles())
}

func TestLoadConfig_RejectsUnknownPolicy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config.yaml"),
		[]byte("on_collision: explode\n"),
		0o644,
	))
	_, err := LoadConfig(dir)
	assert.Error(t, err)
}
