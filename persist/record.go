package persist

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/wbakker/cairn/manifest"
	"github.com/wbakker/cairn/mount"
)

const nameRecord = "_ser__record"

// Unloaded is record content that has not been read from disk yet. It keeps
// the context it was deserialized with so a later load resolves paths
// against the same directory.
type Unloaded struct {
	Type   string
	Target mount.Target
	Dir    string

	ctx *Context
}

func (u *Unloaded) load() any {
	return u.ctx.ReadTarget(u.Target, u.Type)
}

func (u *Unloaded) String() string {
	return fmt.Sprintf("UL[%s]", u.Type)
}

// Undefined is record content that could not be recovered at all, for
// example when a record was deserialized without a mount.
type Undefined struct {
	Type string
}

func (u Undefined) String() string {
	return fmt.Sprintf("ERR[%s]", u.Type)
}

// IsUnloaded reports whether v is deferred record content.
func IsUnloaded(v any) bool {
	_, ok := v.(*Unloaded)
	return ok
}

// Record wraps a storable so it becomes serializable. The payload is written
// to its own file during serialization; the manifest keeps only the target
// path and the storable type. Deserialization produces a record with
// unloaded content, read from disk on first access.
type Record struct {
	reg     *Registry
	content any
	target  mount.Target
	preload bool

	writeExc Invalid
	readExc  Invalid
}

// RecordOption configures a new Record.
type RecordOption func(*Record)

// InTarget requests an explicit target. Set fields take precedence over the
// generated defaults.
func InTarget(t mount.Target) RecordOption {
	return func(r *Record) { r.target = t }
}

// WithPreload loads the payload during deserialization instead of on first
// access.
func WithPreload(preload bool) RecordOption {
	return func(r *Record) { r.preload = preload }
}

// NewRecord wraps content, which must be a registered storable. Passing
// anything else is a usage error and fails immediately instead of degrading
// to a sentinel.
func NewRecord(reg *Registry, content any, opts ...RecordOption) (*Record, error) {
	if !reg.IsStorable(content) {
		return nil, fmt.Errorf("persist: record content %T is not a registered storable", content)
	}
	r := &Record{reg: reg, content: content}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// StorableType returns the registered storable name of the content.
func (r *Record) StorableType() string {
	switch c := r.content.(type) {
	case *Unloaded:
		return c.Type
	case Undefined:
		return c.Type
	}
	name, _ := r.reg.StorableName(r.content)
	return name
}

// Target returns the resolved payload target, generating missing fields on
// first use: a random stem and subdirectory, and a suffix derived from the
// content type. Explicitly requested fields always win.
func (r *Record) Target() mount.Target {
	return r.resolve(mount.DefaultConfig().DefaultSuffix)
}

func (r *Record) resolve(fallback string) mount.Target {
	if r.target.Complete() {
		return r.target
	}
	base := mount.Target{
		Stem:   mount.Value(uuid.NewString()),
		Subdir: mount.Value(uuid.NewString()),
		Suffix: mount.Value(r.suffix(fallback)),
	}
	r.target = base.Merge(r.target)
	return r.target
}

func (r *Record) suffix(fallback string) string {
	switch r.content.(type) {
	case *Unloaded, Undefined:
		return fallback
	}
	return r.reg.Suffix(r.content, fallback)
}

// Preload reports whether the payload loads eagerly on deserialization.
func (r *Record) Preload() bool { return r.preload }

// SetPreload changes the preload behavior for the next save.
func (r *Record) SetPreload(preload bool) { r.preload = preload }

// RequestedTarget returns the target as requested so far, without resolving
// generated fields.
func (r *Record) RequestedTarget() mount.Target { return r.target }

// MergeTarget overlays the set fields of t on the requested target. It has
// no effect on a payload that already resolved to a concrete path.
func (r *Record) MergeTarget(t mount.Target) {
	r.target = r.target.Merge(t)
}

// Exists reports whether the last load found a payload file.
func (r *Record) Exists() bool {
	_, missing := r.readExc.(NoFile)
	return !missing
}

// Valid reports whether the content loaded successfully. With load set, the
// payload is read first if still deferred.
func (r *Record) Valid(load bool) bool {
	if load {
		r.Load()
	}
	return r.readExc == nil
}

// Content returns the payload, reading it from disk if still deferred. A
// failed read yields the read sentinel in place of the value.
func (r *Record) Content() any {
	return r.Load()
}

// SetContent replaces the payload. Only registered storables are accepted;
// anything else is a usage error.
func (r *Record) SetContent(v any) error {
	if !r.reg.IsStorable(v) {
		return fmt.Errorf("persist: record content %T is not a registered storable", v)
	}
	r.content = v
	return nil
}

// Load reads deferred content from disk. Loading is idempotent: once the
// content is live it is returned as is.
func (r *Record) Load() any {
	ul, ok := r.content.(*Unloaded)
	if !ok {
		return r.content
	}
	content := ul.load()
	if !IsValid(content) {
		r.readExc, _ = content.(Invalid)
		return content
	}
	r.readExc = nil
	r.content = content
	return r.content
}

// store writes the payload and returns the concrete target it landed on.
// Content that is still unloaded and whose file already sits under the
// current directory is left untouched; the stored target is simply reused.
func (r *Record) store(ctx *Context) (mount.Target, error) {
	if !ctx.Mounted() {
		r.writeExc = UnWritable{
			Type: r.StorableType(),
			Info: "no mount attached, content will not be stored",
		}
		if err := ctx.logInvalid("cannot store record", r.writeExc); err != nil {
			return mount.Target{}, err
		}
		return r.Target(), nil
	}
	if ul, ok := r.content.(*Unloaded); ok && ul.Dir != ctx.Directory() {
		r.Load() // the target moved
	} else if r.writeExc != nil {
		r.Load() // the previous store failed
	} else if ul, ok := r.content.(*Unloaded); ok {
		return ul.Target, nil // payload already on disk, skip the write
	}

	target, writeExc, err := ctx.WriteTarget(r.resolve(ctx.mnt.DefaultSuffix()), r.content)
	if err != nil {
		return mount.Target{}, err
	}
	r.writeExc = writeExc
	if writeExc != nil {
		if err := ctx.logInvalid("record store failed", writeExc); err != nil {
			return mount.Target{}, err
		}
	}
	return target, nil
}

// SerializeWith writes the payload and emits the record's manifest form.
func (r *Record) SerializeWith(ctx *Context) (manifest.Node, error) {
	stoType := r.StorableType()
	target, err := r.store(ctx)
	if err != nil {
		return nil, err
	}
	r.target = target

	res := manifest.Map{"sto_type": manifest.String(stoType)}
	res["target"] = encodeTarget(target)
	if r.preload {
		res["preload"] = manifest.Bool(true)
	}
	if exc := r.encodeExceptions(ctx); len(exc) > 0 {
		res["exceptions"] = exc
	}
	return res, nil
}

func (r *Record) encodeExceptions(ctx *Context) manifest.Map {
	out := manifest.Map{}
	if r.writeExc != nil {
		if n, err := ctx.Serialize(r.writeExc); err == nil {
			out["write"] = n
		}
	}
	if r.readExc != nil {
		if n, err := ctx.Serialize(r.readExc); err == nil {
			out["read"] = n
		}
	}
	return out
}

// RemoveWith deletes the payload file together with anything the payload
// itself owns on disk.
func (r *Record) RemoveWith(ctx *Context) error {
	content := r.Content()
	if !IsValid(content) {
		ctx.log.Warn("loaded content is invalid, cannot remove payload",
			"type", r.StorableType())
		return nil
	}
	if !r.target.Complete() {
		// Never stored, nothing on disk.
		return ctx.Remove(content)
	}
	return ctx.RemoveTarget(r.target, content)
}

func encodeTarget(t mount.Target) manifest.Node {
	if t.Complete() {
		path, err := t.Path()
		if err == nil {
			return manifest.String(filepath.ToSlash(path))
		}
	}
	fields := make(manifest.List, 0, 4)
	for _, f := range []mount.Field{t.Stem, t.Suffix, t.Subdir} {
		if f.IsSet() {
			fields = append(fields, manifest.String(f.String()))
		} else {
			fields = append(fields, manifest.Null{})
		}
	}
	// Name slot, always derived from stem+suffix on this side.
	fields = append(fields, manifest.Null{})
	return fields
}

func decodeTarget(n manifest.Node) (mount.Target, bool) {
	switch x := n.(type) {
	case manifest.String:
		return mount.TargetFromPath(string(x)), true
	case manifest.List:
		var t mount.Target
		get := func(i int) (string, bool) {
			if i >= len(x) {
				return "", false
			}
			s, ok := x[i].(manifest.String)
			return string(s), ok
		}
		if v, ok := get(0); ok {
			t.Stem = mount.Value(v)
		}
		if v, ok := get(1); ok {
			t.Suffix = mount.Value(v)
		}
		if v, ok := get(2); ok {
			t.Subdir = mount.Value(v)
		}
		if v, ok := get(3); ok {
			t = t.WithName(v)
		}
		return t, true
	}
	return mount.Target{}, false
}

func registerRecord(r *Registry) {
	r.RegisterSerializable(nameRecord, &Record{}, SerialCodec{
		Decode: decodeRecord,
	})
}

func decodeRecord(n manifest.Node, ctx *Context) (any, error) {
	m, ok := n.(manifest.Map)
	if !ok {
		return nil, fmt.Errorf("record content is %T, expected a map", n)
	}
	stoType := mapString(m, "sto_type")
	preload := false
	if b, ok := m["preload"].(manifest.Bool); ok {
		preload = bool(b)
	}

	rec := &Record{reg: ctx.Registry(), preload: preload}
	if exc, ok := m["exceptions"].(manifest.Map); ok {
		rec.decodeExceptions(exc, ctx)
	}

	target, haveTarget := decodeTarget(m["target"])
	rec.target = target
	switch {
	case ctx.Mounted() && haveTarget:
		rec.content = &Unloaded{Type: stoType, Target: target, Dir: ctx.Directory(), ctx: ctx}
	default:
		rec.readExc = UnReadable{
			Type: stoType,
			Info: "record recovered without a mount or target",
		}
		if err := ctx.logInvalid("cannot recover record content", rec.readExc); err != nil {
			return nil, err
		}
		rec.content = Undefined{Type: stoType}
	}
	if preload {
		rec.Load()
	}
	return rec, nil
}

func (r *Record) decodeExceptions(m manifest.Map, ctx *Context) {
	if n, ok := m["write"]; ok {
		if v, err := ctx.Deserialize(n); err == nil {
			r.writeExc, _ = v.(Invalid)
		}
	}
	if n, ok := m["read"]; ok {
		if v, err := ctx.Deserialize(n); err == nil {
			r.readExc, _ = v.(Invalid)
		}
	}
}

func registerBuiltins(r *Registry) {
	registerInvalid(r)
	registerRecord(r)
	r.RegisterSerializable(nameInstance, instanceRef{}, SerialCodec{
		Encode: func(v any, _ *Context) (manifest.Node, error) {
			return manifest.String(v.(instanceRef).name), nil
		},
		Decode: func(n manifest.Node, ctx *Context) (any, error) {
			s, ok := n.(manifest.String)
			if !ok {
				return nil, fmt.Errorf("instance reference is %T, expected a string", n)
			}
			v, ok := ctx.reg.instanceNamed(string(s))
			if !ok {
				return nil, fmt.Errorf("no instance registered under %q", string(s))
			}
			return v, nil
		},
	})
}
