package mount

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTarget(name string) Target {
	return TargetFromPath(name)
}

func TestMount_PrepareCreatesDirectory(t *testing.T) {
	m := NewAt(t.TempDir())
	prepared, err := m.Prepare(testTarget("sub/file.json"), "")
	require.NoError(t, err)

	dir := filepath.Join(m.Dir(), "sub")
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "file", prepared.Stem.String())
}

func TestMount_AutoPolicyYieldsDistinctPaths(t *testing.T) {
	m := NewAt(t.TempDir(), WithPolicy(PolicyAuto))

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		prepared, err := m.Prepare(testTarget("data.json"), "")
		require.NoError(t, err)
		p, err := prepared.Path()
		require.NoError(t, err)
		assert.False(t, seen[p], "path %q prepared twice", p)
		seen[p] = true
	}
	assert.True(t, seen["data.json"])
	assert.True(t, seen["data0.json"])
	assert.True(t, seen["data1.json"])
}

func TestMount_QuitPolicy(t *testing.T) {
	m := NewAt(t.TempDir(), WithPolicy(PolicyQuit))
	_, err := m.Prepare(testTarget("data.json"), "")
	require.NoError(t, err)

	_, err = m.Prepare(testTarget("data.json"), "")
	var quit *UserQuitError
	assert.True(t, errors.As(err, &quit))
}

func TestMount_IgnorePolicyReusesPath(t *testing.T) {
	m := NewAt(t.TempDir())
	first, err := m.Prepare(testTarget("data.json"), "")
	require.NoError(t, err)
	second, err := m.Prepare(testTarget("data.json"), "")
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

type scriptedPrompter struct {
	answers []string
}

func (p *scriptedPrompter) ReplaceTarget(_ Target, _ string) (string, error) {
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

func TestMount_PromptPolicy(t *testing.T) {
	prompter := &scriptedPrompter{answers: []string{"other.json", AnswerAuto}}
	m := NewAt(t.TempDir(), WithPolicy(PolicyPrompt), WithPrompter(prompter))

	_, err := m.Prepare(testTarget("data.json"), "")
	require.NoError(t, err)

	// Collision resolved with a custom name.
	renamed, err := m.Prepare(testTarget("data.json"), "")
	require.NoError(t, err)
	assert.Equal(t, "other.json", renamed.Name())

	// Next collision answers with the auto sentinel; the mount should
	// switch policy permanently.
	auto, err := m.Prepare(testTarget("data.json"), "")
	require.NoError(t, err)
	assert.Equal(t, "data0.json", auto.Name())

	// No prompter interaction needed anymore.
	again, err := m.Prepare(testTarget("data.json"), "")
	require.NoError(t, err)
	assert.Equal(t, "data1.json", again.Name())
	assert.Empty(t, prompter.answers)
}

func TestMount_ClosePrunesEmptyDirectories(t *testing.T) {
	m := NewAt(t.TempDir(), WithIgnoreFiles(false))
	_, err := m.Prepare(testTarget("a/b/file.json"), "")
	require.NoError(t, err)

	// Nothing was written, so the created directories are empty.
	require.NoError(t, m.Close())
	_, err = os.Stat(filepath.Join(m.Dir(), "a"))
	assert.True(t, os.IsNotExist(err))
}

func TestMount_CloseKeepsPopulatedDirectories(t *testing.T) {
	m := NewAt(t.TempDir(), WithIgnoreFiles(false))
	f, _, err := m.OpenFile(testTarget("a/file.txt"), os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("content")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, m.Close())
	_, err = os.Stat(filepath.Join(m.Dir(), "a", "file.txt"))
	assert.NoError(t, err)
}

func TestMount_CloseWritesIgnoreList(t *testing.T) {
	m := NewAt(t.TempDir())
	f, _, err := m.OpenFile(testTarget("file.txt"), os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, m.Close())

	data, err := os.ReadFile(filepath.Join(m.Dir(), IgnoreFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "file.txt")
	assert.Contains(t, string(data), IgnoreFile)
}

func TestMount_IgnoreListRemovedWhenTrivial(t *testing.T) {
	m := NewAt(t.TempDir())
	f, target, err := m.OpenFile(testTarget("file.txt"), os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, m.Close())

	// Remove the file; the next close drops the stale entry and with it
	// the whole ignore file.
	require.NoError(t, m.Remove(target))
	require.NoError(t, m.Close())
	_, err = os.Stat(filepath.Join(m.Dir(), IgnoreFile))
	assert.True(t, os.IsNotExist(err))
}

func TestMount_RemoveDeletesFileAndUntracks(t *testing.T) {
	m := NewAt(t.TempDir())
	f, target, err := m.OpenFile(testTarget("file.txt"), os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, m.Remove(target))
	_, err = os.Stat(filepath.Join(m.Dir(), "file.txt"))
	assert.True(t, os.IsNotExist(err))

	// The path is free again, no collision handling.
	again, err := m.Prepare(testTarget("file.txt"), "")
	require.NoError(t, err)
	assert.Equal(t, "file.txt", again.Name())
}

func TestMount_Contains(t *testing.T) {
	m := NewAt(t.TempDir())
	assert.True(t, m.Contains(filepath.Join(m.Dir(), "x")))
	assert.False(t, m.Contains(filepath.Join(m.Dir(), "..", "escape")))
}

func TestMount_AbsValidates(t *testing.T) {
	m := NewAt(t.TempDir())
	_, err := m.Abs(filepath.Join("..", "escape"), true)
	var merr *MountError
	assert.True(t, errors.As(err, &merr))
}

func TestNew_UsesRootAndGenerator(t *testing.T) {
	base := t.TempDir()
	m, err := New("results", WithBase(base), WithGenerator("gen"), WithSubdir("exp"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "gen", "exp", "results"), m.Dir())
}

func TestNew_NonClusterSharesGeneratorDir(t *testing.T) {
	base := t.TempDir()
	m, err := New("results", WithBase(base), WithGenerator("gen"), WithCluster(false))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "gen"), m.Dir())
}

func TestNew_AppliesConfigFile(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(base, "config.yaml"),
		[]byte("on_collision: auto\ndefault_suffix: .dat\n"),
		0o644,
	))
	m, err := New("key", WithBase(base), WithGenerator("gen"))
	require.NoError(t, err)
	assert.Equal(t, ".dat", m.DefaultSuffix())

	_, err = m.Prepare(testTarget("x.dat"), "")
	require.NoError(t, err)
	second, err := m.Prepare(testTarget("x.dat"), "")
	require.NoError(t, err)
	assert.Equal(t, "x0.dat", second.Name())
}
