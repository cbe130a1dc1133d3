package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbakker/cairn/manifest"
	"github.com/wbakker/cairn/mount"
)

type point struct {
	X, Y int64
}

func registerPoint(r *Registry) {
	RegisterSerializableFor(r, "point",
		func(v point, _ *Context) (manifest.Node, error) {
			return manifest.Map{"x": manifest.Int(v.X), "y": manifest.Int(v.Y)}, nil
		},
		func(n manifest.Node, _ *Context) (point, error) {
			m, ok := n.(manifest.Map)
			if !ok {
				return point{}, fmt.Errorf("expected map, got %T", n)
			}
			x, _ := m["x"].(manifest.Int)
			y, _ := m["y"].(manifest.Int)
			return point{X: int64(x), Y: int64(y)}, nil
		})
}

type blob struct {
	data string
}

// blobCounters records file traffic so tests can assert on laziness.
type blobCounters struct {
	writes, reads int
}

func registerBlob(r *Registry, c *blobCounters) {
	RegisterStorableFor(r, "blob", ".txt",
		func(v *blob, path string, _ *Context) error {
			c.writes++
			return os.WriteFile(path, []byte(v.data), 0o644)
		},
		func(path string, _ *Context) (*blob, error) {
			c.reads++
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return &blob{data: string(data)}, nil
		})
}

func testContext(t *testing.T, r *Registry, opts ...ContextOption) *Context {
	t.Helper()
	mnt := mount.NewAt(t.TempDir())
	return NewContext(r, append([]ContextOption{WithMount(mnt)}, opts...)...)
}

func TestSerialize_Atomics(t *testing.T) {
	ctx := NewContext(NewRegistry())
	for _, v := range []any{"hi", int64(42), 3.5, true, nil} {
		n, err := ctx.Serialize(v)
		require.NoError(t, err)
		back, err := ctx.Deserialize(n)
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}

func TestSerialize_RegisteredType(t *testing.T) {
	r := NewRegistry()
	registerPoint(r)
	ctx := NewContext(r)

	n, err := ctx.Serialize(point{X: 1, Y: 2})
	require.NoError(t, err)
	tagged, ok := n.(manifest.Tagged)
	require.True(t, ok)
	assert.Equal(t, "point", tagged.Tag)

	back, err := ctx.Deserialize(n)
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 2}, back)
}

func TestSerializeContent_OmitsTag(t *testing.T) {
	r := NewRegistry()
	registerPoint(r)
	ctx := NewContext(r)

	n, err := ctx.SerializeContent(point{X: 3, Y: 4})
	require.NoError(t, err)
	_, ok := n.(manifest.Map)
	assert.True(t, ok)

	back, err := ctx.DeserializeAs(n, "point")
	require.NoError(t, err)
	assert.Equal(t, point{X: 3, Y: 4}, back)
}

func TestSerialize_UnknownTypeBecomesSentinel(t *testing.T) {
	type opaque struct{ c chan int }
	ctx := NewContext(NewRegistry())

	n, err := ctx.Serialize(opaque{})
	require.NoError(t, err)

	back, err := ctx.Deserialize(n)
	require.NoError(t, err)
	inv, ok := back.(Unserializable)
	require.True(t, ok)
	assert.False(t, IsValid(inv))
	assert.Contains(t, inv.Type, "opaque")
}

func TestSerialize_StrictModeRaises(t *testing.T) {
	type opaque struct{ c chan int }
	ctx := NewContext(NewRegistry(), WithStrict(true))

	_, err := ctx.Serialize(opaque{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSerialize_HookErrorContained(t *testing.T) {
	r := NewRegistry()
	RegisterSerializableFor(r, "broken",
		func(_ *blob, _ *Context) (manifest.Node, error) {
			return nil, fmt.Errorf("boom")
		},
		func(_ manifest.Node, _ *Context) (*blob, error) {
			return nil, fmt.Errorf("boom")
		})
	ctx := NewContext(r)

	n, err := ctx.Serialize(&blob{data: "x"})
	require.NoError(t, err)
	back, err := ctx.Deserialize(n)
	require.NoError(t, err)
	inv, ok := back.(ExcUnserializable)
	require.True(t, ok)
	assert.Equal(t, "broken", inv.Type)
	assert.Contains(t, inv.Info, "boom")
	assert.NotEmpty(t, inv.Trace)
}

func TestDeserialize_UnknownTagRetainsContent(t *testing.T) {
	full := NewRegistry()
	registerPoint(full)
	stored, err := NewContext(full).Serialize(point{X: 7, Y: 9})
	require.NoError(t, err)

	// Reading without the codec keeps the content around.
	bare := NewContext(NewRegistry())
	v, err := bare.Deserialize(stored)
	require.NoError(t, err)
	inv, ok := v.(Undeserializable)
	require.True(t, ok)
	assert.Equal(t, "point", inv.Type)
	require.NotNil(t, inv.Raw)

	// The sentinel itself serializes, so nothing is lost on a re-save.
	resaved, err := bare.Serialize(inv)
	require.NoError(t, err)

	// Once the codec is registered, the retained content recovers.
	back, err := NewContext(full).Deserialize(resaved)
	require.NoError(t, err)
	assert.Equal(t, point{X: 7, Y: 9}, back)
}

func TestSerialize_RegisteredInstance(t *testing.T) {
	r := NewRegistry()
	shared := &blob{data: "singleton"}
	r.RegisterInstance("shared-blob", shared)
	ctx := NewContext(r)

	n, err := ctx.Serialize(shared)
	require.NoError(t, err)
	tagged, ok := n.(manifest.Tagged)
	require.True(t, ok)
	assert.Equal(t, nameInstance, tagged.Tag)

	back, err := ctx.Deserialize(n)
	require.NoError(t, err)
	assert.Same(t, shared, back)
}

func TestSerialize_ListPromotesStorables(t *testing.T) {
	r := NewRegistry()
	var counters blobCounters
	registerBlob(r, &counters)
	ctx := testContext(t, r)

	n, err := ctx.Serialize([]any{"label", &blob{data: "payload"}})
	require.NoError(t, err)
	tagged, ok := n.(manifest.Tagged)
	require.True(t, ok)
	assert.Equal(t, NameListContainer, tagged.Tag)
	assert.Equal(t, 1, counters.writes)
}

func TestSerialize_MapPromotesStorables(t *testing.T) {
	r := NewRegistry()
	var counters blobCounters
	registerBlob(r, &counters)
	ctx := testContext(t, r)

	n, err := ctx.Serialize(map[string]any{"a": int64(1), "b": &blob{data: "x"}})
	require.NoError(t, err)
	tagged, ok := n.(manifest.Tagged)
	require.True(t, ok)
	assert.Equal(t, NameDictContainer, tagged.Tag)
	assert.Equal(t, 1, counters.writes)
}

// recordTargets pulls the target strings out of a serialized container node.
func recordTargets(t *testing.T, n manifest.Node) []string {
	t.Helper()
	tagged, ok := n.(manifest.Tagged)
	require.True(t, ok)
	content, ok := tagged.Content.(manifest.Map)
	require.True(t, ok)
	var out []string
	switch store := content["store"].(type) {
	case manifest.List:
		for _, item := range store {
			if rec, ok := item.(manifest.Tagged); ok && rec.Tag == nameRecord {
				m, _ := rec.Content.(manifest.Map)
				if s, ok := m["target"].(manifest.String); ok {
					out = append(out, string(s))
				}
			}
		}
	case manifest.Map:
		for _, key := range store.SortedKeys() {
			if rec, ok := store[key].(manifest.Tagged); ok && rec.Tag == nameRecord {
				m, _ := rec.Content.(manifest.Map)
				if s, ok := m["target"].(manifest.String); ok {
					out = append(out, string(s))
				}
			}
		}
	}
	return out
}

func TestSerialize_RepeatedListPromotionReusesTarget(t *testing.T) {
	r := NewRegistry()
	var counters blobCounters
	registerBlob(r, &counters)
	dir := t.TempDir()
	ctx := NewContext(r, WithMount(mount.NewAt(dir)))

	items := []any{"label", &blob{data: "payload"}}
	first, err := ctx.Serialize(items)
	require.NoError(t, err)

	// Promotion stores the record in the slice slot, so the next pass
	// reuses its resolved target instead of minting a fresh one.
	rec, ok := items[1].(*Record)
	require.True(t, ok)

	second, err := ctx.Serialize(items)
	require.NoError(t, err)
	assert.Same(t, rec, items[1])
	assert.Equal(t, recordTargets(t, first), recordTargets(t, second))
	tagged, ok := second.(manifest.Tagged)
	require.True(t, ok)
	assert.Equal(t, NameListContainer, tagged.Tag)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	payloads := 0
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".txt" {
			payloads++
		}
	}
	assert.Equal(t, 1, payloads)
}

func TestSerialize_RepeatedMapPromotionReusesTarget(t *testing.T) {
	r := NewRegistry()
	var counters blobCounters
	registerBlob(r, &counters)
	ctx := testContext(t, r)

	m := map[string]any{"b": &blob{data: "x"}}
	first, err := ctx.Serialize(m)
	require.NoError(t, err)
	rec, ok := m["b"].(*Record)
	require.True(t, ok)

	second, err := ctx.Serialize(m)
	require.NoError(t, err)
	assert.Same(t, rec, m["b"])
	assert.Equal(t, recordTargets(t, first), recordTargets(t, second))
}

func TestSerialize_UnmountedListKeepsPlainForm(t *testing.T) {
	r := NewRegistry()
	registerPoint(r)
	ctx := NewContext(r)

	n, err := ctx.Serialize([]any{int64(1), point{X: 2, Y: 3}})
	require.NoError(t, err)
	_, ok := n.(manifest.List)
	assert.True(t, ok)
}

func TestSerialize_TypedSlices(t *testing.T) {
	ctx := NewContext(NewRegistry())
	n, err := ctx.Serialize([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, manifest.List{manifest.String("a"), manifest.String("b")}, n)
}
