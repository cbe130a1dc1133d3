package model

import (
	"github.com/wbakker/cairn/manifest"
	"github.com/wbakker/cairn/mount"
	"github.com/wbakker/cairn/persist"
)

// List is an ordered container. Storable elements are wrapped in records on
// insertion and unwrapped on access.
type List struct {
	reg *persist.Registry
	cfg settings

	// maker overrides the default record placement; Runs uses it to label
	// elements sequentially.
	maker func(any) *persist.Record

	store  []any
	unused []any
}

// NewList returns an empty list over reg.
func NewList(reg *persist.Registry, opts ...Option) *List {
	return &List{reg: reg, cfg: newSettings(opts)}
}

// ListOf returns a list seeded with the given values.
func ListOf(reg *persist.Registry, values []any, opts ...Option) *List {
	l := NewList(reg, opts...)
	l.Append(values...)
	return l
}

func (l *List) makeRecord(v any) *persist.Record {
	rec, err := persist.NewRecord(l.reg, v,
		persist.InTarget(mount.Target{Subdir: mount.Value(l.cfg.subdir)}),
		persist.WithPreload(l.cfg.preload))
	if err != nil {
		// Callers wrap only after an IsStorable check.
		panic(err)
	}
	return rec
}

func (l *List) wrap(v any) any {
	if !l.reg.IsStorable(v) {
		return v
	}
	if l.maker != nil {
		return l.maker(v)
	}
	return l.makeRecord(v)
}

// Len returns the number of elements.
func (l *List) Len() int { return len(l.store) }

// Get returns the element at index i, loading record content on demand.
func (l *List) Get(i int) any {
	return materialize(l.store[i])
}

// Values returns all elements, materialized.
func (l *List) Values() []any {
	out := make([]any, len(l.store))
	for i, itm := range l.store {
		out[i] = materialize(itm)
	}
	return out
}

// Append adds values to the end of the list.
func (l *List) Append(values ...any) {
	for _, v := range values {
		l.store = append(l.store, l.wrap(v))
	}
}

// Insert places v at index i, shifting later elements.
func (l *List) Insert(i int, v any) {
	l.store = append(l.store, nil)
	copy(l.store[i+1:], l.store[i:])
	l.store[i] = l.wrap(v)
}

// Set replaces the element at index i. When both the current element and the
// new value are storable the existing record is reused, so the payload keeps
// its file; displaced content moves to the unused buffer for deferred
// cleanup.
func (l *List) Set(i int, v any) {
	itm := l.store[i]
	if rec, ok := itm.(*persist.Record); ok && l.reg.IsStorable(v) {
		if l.cfg.autoClean && isRemovable(rec.Content()) {
			l.unused = append(l.unused, rec.Content())
		}
		// Error impossible after the IsStorable check.
		_ = rec.SetContent(v)
		return
	}
	if l.cfg.autoClean && isRemovable(itm) {
		l.unused = append(l.unused, itm)
	}
	l.store[i] = l.wrap(v)
}

// Delete removes the element at index i, buffering its files for cleanup.
func (l *List) Delete(i int) {
	itm := l.store[i]
	if l.cfg.autoClean && isRemovable(itm) {
		l.unused = append(l.unused, itm)
	}
	l.store = append(l.store[:i], l.store[i+1:]...)
}

// Clear removes all elements.
func (l *List) Clear() {
	for i := len(l.store) - 1; i >= 0; i-- {
		l.Delete(i)
	}
}

// Record inserts a storable with explicit placement. The target's set
// fields override the generated defaults; its subdirectory is joined below
// the list's own.
func (l *List) Record(v any, target mount.Target, preload bool) {
	l.Append(v)
	if rec, ok := l.store[len(l.store)-1].(*persist.Record); ok {
		overlayTarget(rec, target, preload)
	}
}

// flushUnused deletes the files of buffered elements.
func (l *List) flushUnused(ctx *persist.Context) error {
	if !l.cfg.autoClean || len(l.unused) == 0 {
		return nil
	}
	for _, itm := range l.unused {
		if err := ctx.Remove(itm); err != nil {
			return err
		}
	}
	l.unused = nil
	return nil
}

func (l *List) serializeStore(ctx *persist.Context) (manifest.List, error) {
	if err := l.flushUnused(ctx); err != nil {
		return nil, err
	}
	items := make(manifest.List, 0, len(l.store))
	for _, itm := range l.store {
		if rec, ok := itm.(*persist.Record); ok && l.cfg.autoClean && !rec.Exists() {
			// Dangling pointer, clean instead of persisting.
			l.unused = append(l.unused, rec)
			continue
		}
		n, err := ctx.Serialize(itm)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := l.flushUnused(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

// SerializeWith implements persist.Serializable.
func (l *List) SerializeWith(ctx *persist.Context) (manifest.Node, error) {
	items, err := l.serializeStore(ctx)
	if err != nil {
		return nil, err
	}
	res := manifest.Map{"store": items}
	if l.cfg.subdir != "" {
		res["subdir"] = manifest.String(l.cfg.subdir)
	}
	if l.cfg.preload {
		res["preload"] = manifest.Bool(true)
	}
	return res, nil
}

// RemoveWith implements persist.Removable: every element's files go.
func (l *List) RemoveWith(ctx *persist.Context) error {
	for _, itm := range l.store {
		if err := ctx.Remove(itm); err != nil {
			return err
		}
	}
	return nil
}

func decodeList(n manifest.Node, ctx *persist.Context) (*List, error) {
	m, err := contentMap(n)
	if err != nil {
		return nil, err
	}
	l := NewList(ctx.Registry(),
		InSubdir(stringEntry(m, "subdir")),
		WithPreload(boolEntry(m, "preload")))
	items, _ := m["store"].(manifest.List)
	for _, item := range items {
		v, err := ctx.Deserialize(item)
		if err != nil {
			return nil, err
		}
		l.store = append(l.store, v)
	}
	return l, nil
}
