package model

import (
	"fmt"

	"github.com/wbakker/cairn/manifest"
	"github.com/wbakker/cairn/mount"
	"github.com/wbakker/cairn/persist"
)

// Runs is an ordered container that labels storable elements sequentially:
// the first payload is "<stem>-0", the next "<stem>-1" and so on. By default
// each element is isolated in its own subdirectory named after its label, so
// multi-file payloads of successive runs cannot collide.
type Runs struct {
	List
	runCount int
}

// NewRuns returns an empty run sequence over reg.
func NewRuns(reg *persist.Registry, opts ...Option) *Runs {
	r := &Runs{List: List{reg: reg, cfg: newSettings(opts)}}
	if r.cfg.storeSubdir == nil {
		enabled := true
		r.cfg.storeSubdir = &enabled
	}
	r.maker = r.makeRunRecord
	return r
}

func (r *Runs) makeRunRecord(v any) *persist.Record {
	label := fmt.Sprintf("%s-%d", r.cfg.stem, r.runCount)
	r.runCount++
	target := mount.Target{Subdir: mount.Value(r.cfg.subdir)}
	if r.cfg.subdirStored() {
		target.Stem = mount.Value(r.cfg.stem)
		target.Subdir = mount.Value(joinSubdir(r.cfg.subdir, label))
	} else {
		target.Stem = mount.Value(label)
	}
	rec, err := persist.NewRecord(r.reg, v,
		persist.InTarget(target), persist.WithPreload(r.cfg.preload))
	if err != nil {
		panic(err)
	}
	return rec
}

// Clear removes all elements and restarts the labeling at zero.
func (r *Runs) Clear() {
	r.List.Clear()
	r.runCount = 0
}

// SerializeWith implements persist.Serializable.
func (r *Runs) SerializeWith(ctx *persist.Context) (manifest.Node, error) {
	items, err := r.serializeStore(ctx)
	if err != nil {
		return nil, err
	}
	res := manifest.Map{
		"store":     items,
		"stem":      manifest.String(r.cfg.stem),
		"run_count": manifest.Int(int64(r.runCount)),
	}
	if r.cfg.subdir != "" {
		res["subdir"] = manifest.String(r.cfg.subdir)
	}
	if r.cfg.preload {
		res["preload"] = manifest.Bool(true)
	}
	if !r.cfg.subdirStored() {
		res["store_subdir"] = manifest.Bool(false)
	}
	return res, nil
}

func decodeRuns(n manifest.Node, ctx *persist.Context) (*Runs, error) {
	m, err := contentMap(n)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		InSubdir(stringEntry(m, "subdir")),
		WithPreload(boolEntry(m, "preload")),
	}
	if stem := stringEntry(m, "stem"); stem != "" {
		opts = append(opts, WithStem(stem))
	}
	if raw, ok := m["store_subdir"].(manifest.Bool); ok {
		opts = append(opts, StoreSubdir(bool(raw)))
	}
	r := NewRuns(ctx.Registry(), opts...)
	if count, ok := m["run_count"].(manifest.Int); ok {
		r.runCount = int(count)
	}
	items, _ := m["store"].(manifest.List)
	for _, item := range items {
		v, err := ctx.Deserialize(item)
		if err != nil {
			return nil, err
		}
		r.store = append(r.store, v)
	}
	return r, nil
}
