package model

import (
	"fmt"

	"github.com/wbakker/cairn/manifest"
	"github.com/wbakker/cairn/mount"
	"github.com/wbakker/cairn/persist"
)

// Option configures a container at construction time.
type Option func(*settings)

type settings struct {
	subdir      string
	preload     bool
	storeByKey  bool
	storeSubdir *bool
	stem        string
	autoClean   bool
}

func newSettings(opts []Option) settings {
	s := settings{stem: "run", autoClean: true}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s settings) subdirStored() bool {
	if s.storeSubdir == nil {
		return false
	}
	return *s.storeSubdir
}

// InSubdir places payload files of contained storables below subdir.
func InSubdir(subdir string) Option {
	return func(s *settings) { s.subdir = subdir }
}

// WithPreload loads contained payloads eagerly on deserialization.
func WithPreload(preload bool) Option {
	return func(s *settings) { s.preload = preload }
}

// StoreByKey names payload files after their dictionary key. Dict only.
func StoreByKey() Option {
	return func(s *settings) { s.storeByKey = true }
}

// StoreSubdir isolates each element's payload in its own subdirectory,
// derived from the key for Dict and from the run label for Runs.
func StoreSubdir(enabled bool) Option {
	return func(s *settings) { s.storeSubdir = &enabled }
}

// WithStem sets the label stem for Runs elements ("run" by default).
func WithStem(stem string) Option {
	return func(s *settings) { s.stem = stem }
}

// WithAutoClean toggles deferred file cleanup for replaced and deleted
// elements. Enabled by default.
func WithAutoClean(enabled bool) Option {
	return func(s *settings) { s.autoClean = enabled }
}

// Register adds the container codecs to a registry. The facade does this
// once at construction; it is exported for callers assembling their own
// registry.
func Register(r *persist.Registry) {
	persist.RegisterSerializableFor(r, persist.NameListContainer, nil, decodeList)
	persist.RegisterSerializableFor(r, persist.NameDictContainer, nil, decodeDict)
	persist.RegisterSerializableFor(r, persist.NameRunsContainer, nil, decodeRuns)
}

func isRemovable(v any) bool {
	_, ok := v.(persist.Removable)
	return ok
}

// materialize unwraps records; everything else passes through.
func materialize(v any) any {
	if rec, ok := v.(*persist.Record); ok {
		return rec.Content()
	}
	return v
}

// overlayTarget merges explicit placement over a record's pending request,
// joining subdirectories instead of replacing them.
func overlayTarget(rec *persist.Record, t mount.Target, preload bool) {
	if t.Subdir.IsSet() {
		base := rec.RequestedTarget().Subdir.String()
		t.Subdir = mount.Value(joinSubdir(base, t.Subdir.String()))
	}
	rec.MergeTarget(t)
	if preload {
		rec.SetPreload(true)
	}
}

func joinSubdir(base, extra string) string {
	switch {
	case base == "":
		return extra
	case extra == "":
		return base
	default:
		return base + "/" + extra
	}
}

func contentMap(n manifest.Node) (manifest.Map, error) {
	m, ok := n.(manifest.Map)
	if !ok {
		return nil, fmt.Errorf("container content is %T, expected a map", n)
	}
	return m, nil
}

func boolEntry(m manifest.Map, key string) bool {
	b, _ := m[key].(manifest.Bool)
	return bool(b)
}

func stringEntry(m manifest.Map, key string) string {
	s, _ := m[key].(manifest.String)
	return string(s)
}
