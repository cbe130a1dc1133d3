package model

import (
	"sort"

	"github.com/wbakker/cairn/manifest"
	"github.com/wbakker/cairn/mount"
	"github.com/wbakker/cairn/persist"
)

// Dict is a keyed container with string keys. Storable values are wrapped in
// records on insertion; the StoreByKey and StoreSubdir options derive the
// payload file name and directory from the key.
type Dict struct {
	reg *persist.Registry
	cfg settings

	store  map[string]any
	unused []any
}

// NewDict returns an empty dictionary over reg.
func NewDict(reg *persist.Registry, opts ...Option) *Dict {
	return &Dict{reg: reg, cfg: newSettings(opts), store: map[string]any{}}
}

// DictOf returns a dictionary seeded with the given entries.
func DictOf(reg *persist.Registry, content map[string]any, opts ...Option) *Dict {
	d := NewDict(reg, opts...)
	for _, k := range sortedKeys(content) {
		d.Set(k, content[k])
	}
	return d
}

func (d *Dict) makeRecord(key string, v any) *persist.Record {
	target := mount.Target{Subdir: mount.Value(d.cfg.subdir)}
	if d.cfg.storeByKey {
		target.Stem = mount.Value(key)
	}
	if d.cfg.subdirStored() {
		target.Subdir = mount.Value(joinSubdir(d.cfg.subdir, key))
	}
	rec, err := persist.NewRecord(d.reg, v,
		persist.InTarget(target), persist.WithPreload(d.cfg.preload))
	if err != nil {
		panic(err)
	}
	return rec
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.store) }

// Keys returns the keys in sorted order.
func (d *Dict) Keys() []string {
	return sortedKeys(d.store)
}

// Get returns the value stored at key, loading record content on demand.
// The second result reports presence, like a map access.
func (d *Dict) Get(key string) (any, bool) {
	itm, ok := d.store[key]
	if !ok {
		return nil, false
	}
	return materialize(itm), true
}

// Set stores v at key. An existing record at the same key is reused when the
// new value is storable; displaced content is buffered for deferred cleanup.
func (d *Dict) Set(key string, v any) {
	itm, existed := d.store[key]
	if existed {
		if rec, ok := itm.(*persist.Record); ok && d.reg.IsStorable(v) {
			if d.cfg.autoClean && isRemovable(rec.Content()) {
				d.unused = append(d.unused, rec.Content())
			}
			_ = rec.SetContent(v)
			return
		}
		if d.cfg.autoClean && isRemovable(itm) {
			d.unused = append(d.unused, itm)
		}
	}
	if d.reg.IsStorable(v) {
		d.store[key] = d.makeRecord(key, v)
		return
	}
	d.store[key] = v
}

// Delete removes the entry at key, buffering its files for cleanup.
func (d *Dict) Delete(key string) {
	itm, ok := d.store[key]
	if !ok {
		return
	}
	if d.cfg.autoClean && isRemovable(itm) {
		d.unused = append(d.unused, itm)
	}
	delete(d.store, key)
}

// Clear removes all entries.
func (d *Dict) Clear() {
	for _, k := range d.Keys() {
		d.Delete(k)
	}
}

// Record stores a storable at key with explicit placement, joined below the
// dictionary's subdirectory.
func (d *Dict) Record(key string, v any, target mount.Target, preload bool) {
	d.Set(key, v)
	if rec, ok := d.store[key].(*persist.Record); ok {
		overlayTarget(rec, target, preload)
	}
}

func (d *Dict) flushUnused(ctx *persist.Context) error {
	if !d.cfg.autoClean || len(d.unused) == 0 {
		return nil
	}
	for _, itm := range d.unused {
		if err := ctx.Remove(itm); err != nil {
			return err
		}
	}
	d.unused = nil
	return nil
}

// SerializeWith implements persist.Serializable.
func (d *Dict) SerializeWith(ctx *persist.Context) (manifest.Node, error) {
	if err := d.flushUnused(ctx); err != nil {
		return nil, err
	}
	store := make(manifest.Map, len(d.store))
	for _, k := range d.Keys() {
		itm := d.store[k]
		if rec, ok := itm.(*persist.Record); ok && d.cfg.autoClean && !rec.Exists() {
			d.unused = append(d.unused, rec)
			continue
		}
		n, err := ctx.Serialize(itm)
		if err != nil {
			return nil, err
		}
		store[k] = n
	}
	if err := d.flushUnused(ctx); err != nil {
		return nil, err
	}

	res := manifest.Map{"store": store}
	if d.cfg.subdir != "" {
		res["subdir"] = manifest.String(d.cfg.subdir)
	}
	if d.cfg.preload {
		res["preload"] = manifest.Bool(true)
	}
	if d.cfg.storeByKey {
		res["store_by_key"] = manifest.Bool(true)
	}
	if d.cfg.subdirStored() {
		res["store_subdir"] = manifest.Bool(true)
	}
	return res, nil
}

// RemoveWith implements persist.Removable.
func (d *Dict) RemoveWith(ctx *persist.Context) error {
	for _, k := range d.Keys() {
		if err := ctx.Remove(d.store[k]); err != nil {
			return err
		}
	}
	return nil
}

func decodeDict(n manifest.Node, ctx *persist.Context) (*Dict, error) {
	m, err := contentMap(n)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		InSubdir(stringEntry(m, "subdir")),
		WithPreload(boolEntry(m, "preload")),
		StoreSubdir(boolEntry(m, "store_subdir")),
	}
	if boolEntry(m, "store_by_key") {
		opts = append(opts, StoreByKey())
	}
	d := NewDict(ctx.Registry(), opts...)
	store, _ := m["store"].(manifest.Map)
	for _, k := range store.SortedKeys() {
		v, err := ctx.Deserialize(store[k])
		if err != nil {
			return nil, err
		}
		d.store[k] = v
	}
	return d, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
