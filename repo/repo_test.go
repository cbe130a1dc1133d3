package repo

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbakker/cairn/manifest"
	"github.com/wbakker/cairn/model"
	"github.com/wbakker/cairn/persist"
)

type note struct {
	text string
}

func newTestRegistry() *persist.Registry {
	r := persist.NewRegistry()
	model.Register(r)
	persist.RegisterStorableFor(r, "note", ".txt",
		func(v *note, path string, _ *persist.Context) error {
			return os.WriteFile(path, []byte(v.text), 0o644)
		},
		func(path string, _ *persist.Context) (*note, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return &note{text: string(data)}, nil
		})
	return r
}

func newTestSession(t *testing.T) (*Session, []Option) {
	t.Helper()
	base := t.TempDir()
	opts := []Option{WithBase(base), WithGenerator("cache/test")}
	return New(newTestRegistry()), opts
}

func keyDir(opts []Option, key string) string {
	o := collect(opts)
	return filepath.Join(o.base, o.generator, key)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s, opts := newTestSession(t)
	obj := map[string]any{"name": "experiment", "trials": int64(3)}
	require.NoError(t, s.Save("config", obj, opts...))

	_, err := os.Stat(filepath.Join(keyDir(opts, "config"), "config.json"))
	require.NoError(t, err)

	back, err := s.Load("config", opts...)
	require.NoError(t, err)
	assert.Equal(t, obj, back)
}

func TestLoad_Defaults(t *testing.T) {
	s, opts := newTestSession(t)

	_, err := s.Load("missing", opts...)
	var kerr *KeyError
	require.ErrorAs(t, err, &kerr)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	v, err := s.Load("missing", append(opts, WithDefault("fallback"))...)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	v, err = s.Load("missing", append(opts, WithDefaultFactory(func() any {
		return map[string]any{}
	}))...)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, v)
}

func TestSave_StorableWrapsInRecord(t *testing.T) {
	s, opts := newTestSession(t)
	require.NoError(t, s.Save("raw", &note{text: "payload"}, opts...))

	back, err := s.Load("raw", opts...)
	require.NoError(t, err)
	rec, ok := back.(*persist.Record)
	require.True(t, ok)
	loaded, ok := rec.Content().(*note)
	require.True(t, ok)
	assert.Equal(t, "payload", loaded.text)
}

func TestSave_RejectsUnusableValues(t *testing.T) {
	s, opts := newTestSession(t)
	require.Error(t, s.Save("bad", struct{ c chan int }{}, opts...))
}

func TestStore_WritesBarePayload(t *testing.T) {
	s, opts := newTestSession(t)
	n, err := s.Store("weights", &note{text: "0.5 0.25"}, opts...)
	require.NoError(t, err)

	tagged, ok := n.(manifest.Tagged)
	require.True(t, ok)
	assert.Equal(t, "_ser__record", tagged.Tag)

	// Store is not clustered: the payload sits directly in the generator
	// folder, named after the key.
	o := collect(opts)
	data, err := os.ReadFile(filepath.Join(o.base, o.generator, "weights.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0.5 0.25", string(data))
}

func TestStore_RejectsNonStorable(t *testing.T) {
	s, opts := newTestSession(t)
	_, err := s.Store("weights", "just a string", opts...)
	require.Error(t, err)
}

func TestSave_WritesIgnoreList(t *testing.T) {
	s, opts := newTestSession(t)
	require.NoError(t, s.Save("config", map[string]any{"a": int64(1)}, opts...))

	parent := filepath.Dir(keyDir(opts, "config"))
	data, err := os.ReadFile(filepath.Join(parent, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "config")
}

func TestClean_RemovesKeyCompletely(t *testing.T) {
	s, opts := newTestSession(t)
	reg := s.reg

	l := model.ListOf(reg, []any{&note{text: "a"}, &note{text: "b"}})
	require.NoError(t, s.Save("runs", l, opts...))
	dir := keyDir(opts, "runs")
	_, err := os.Stat(filepath.Join(dir, "runs.json"))
	require.NoError(t, err)

	require.NoError(t, s.Clean("runs", opts...))
	_, err = os.Stat(dir)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "key directory is removed")

	data, err := os.ReadFile(filepath.Join(filepath.Dir(dir), ".gitignore"))
	if err == nil {
		assert.NotContains(t, string(data), "runs")
	}
}

func TestClean_MissingKeyIsNoop(t *testing.T) {
	s, opts := newTestSession(t)
	assert.NoError(t, s.Clean("never-saved", opts...))
}

func TestTrack_SavesOnClose(t *testing.T) {
	s, opts := newTestSession(t)

	tr := s.Track("state", append(opts, WithDefaultFactory(func() any {
		return map[string]any{"count": int64(0)}
	}))...)
	v, err := tr.Content()
	require.NoError(t, err)
	state := v.(map[string]any)
	state["count"] = int64(5)
	require.NoError(t, tr.Close())

	back, err := s.Load("state", opts...)
	require.NoError(t, err)
	assert.Equal(t, int64(5), back.(map[string]any)["count"])
}

func TestTrack_CloseWithoutLoadIsNoop(t *testing.T) {
	s, opts := newTestSession(t)
	tr := s.Track("untouched", opts...)
	require.NoError(t, tr.Close())
	_, err := os.Stat(keyDir(opts, "untouched"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestUninterrupted_PassesThroughResult(t *testing.T) {
	sentinel := errors.New("from fn")
	err := Uninterrupted(func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.NotErrorIs(t, err, ErrInterrupted)
}

func TestUninterrupted_DefersInterrupt(t *testing.T) {
	ran := false
	err := Uninterrupted(func() error {
		require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
		// Give the runtime a moment to route the signal to the guard.
		time.Sleep(100 * time.Millisecond)
		ran = true
		return nil
	})
	assert.True(t, ran)
	assert.ErrorIs(t, err, ErrInterrupted)
}
