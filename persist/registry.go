package persist

import (
	"fmt"
	"reflect"

	"github.com/wbakker/cairn/manifest"
)

// Serializable is implemented by types that can turn themselves into a
// manifest node. Types registered without an explicit encode hook must
// implement it.
type Serializable interface {
	SerializeWith(ctx *Context) (manifest.Node, error)
}

// FileWriter is implemented by storables that write their own payload file.
// Storables registered without an explicit write hook must implement it.
type FileWriter interface {
	WriteFile(path string, ctx *Context) error
}

// Removable is implemented by values that own on-disk state beyond their own
// manifest entry. The engine calls RemoveWith before discarding such a value
// so nested records can delete their payload files.
type Removable interface {
	RemoveWith(ctx *Context) error
}

// SerialCodec holds the hooks for a serializable type. Encode may be nil
// when the type implements Serializable itself; Decode is mandatory.
type SerialCodec struct {
	Encode func(v any, ctx *Context) (manifest.Node, error)
	Decode func(n manifest.Node, ctx *Context) (any, error)
}

// StorableCodec holds the hooks for a storable type. Write may be nil when
// the type implements FileWriter itself; Read is mandatory. Ext, when set,
// is the default filename suffix for payloads of this type.
type StorableCodec struct {
	Write func(v any, path string, ctx *Context) error
	Read  func(path string, ctx *Context) (any, error)
	Ext   string
}

type serialEntry struct {
	name  string
	typ   reflect.Type
	codec SerialCodec
}

func (e *serialEntry) encode(v any, ctx *Context) (manifest.Node, error) {
	if e.codec.Encode != nil {
		return e.codec.Encode(v, ctx)
	}
	return v.(Serializable).SerializeWith(ctx)
}

type storableEntry struct {
	name  string
	typ   reflect.Type
	codec StorableCodec
}

func (e *storableEntry) write(v any, path string, ctx *Context) error {
	if e.codec.Write != nil {
		return e.codec.Write(v, path, ctx)
	}
	return v.(FileWriter).WriteFile(path, ctx)
}

// Registry maps type names to codecs in both directions. Registration is
// last-wins: re-registering a name or a Go type replaces the earlier entry.
// A Registry is safe for concurrent reads once registration has finished;
// registration itself is not synchronized.
type Registry struct {
	serialByName map[string]*serialEntry
	serialByType map[reflect.Type]*serialEntry
	storByName   map[string]*storableEntry
	storByType   map[reflect.Type]*storableEntry
	instances    map[string]any
}

// NewRegistry returns a registry pre-loaded with the built-in entries:
// records, invalid sentinels and registered-instance references. Model
// container types are added separately by the packages that define them.
func NewRegistry() *Registry {
	r := &Registry{
		serialByName: make(map[string]*serialEntry),
		serialByType: make(map[reflect.Type]*serialEntry),
		storByName:   make(map[string]*storableEntry),
		storByType:   make(map[reflect.Type]*storableEntry),
		instances:    make(map[string]any),
	}
	registerBuiltins(r)
	return r
}

// RegisterSerializable binds name to the dynamic type of prototype. Codec
// misuse (nil Decode, or nil Encode on a type that does not implement
// Serializable) is a programmer error and panics at registration time rather
// than surfacing later as a sentinel.
func (r *Registry) RegisterSerializable(name string, prototype any, codec SerialCodec) {
	typ := prototypeType(prototype)
	if codec.Decode == nil {
		panic(fmt.Sprintf("persist: registering %q (%s) without a decode hook", name, typ))
	}
	if codec.Encode == nil {
		if _, ok := reflect.Zero(typ).Interface().(Serializable); !ok {
			panic(fmt.Sprintf("persist: %q (%s) has no encode hook and does not implement Serializable", name, typ))
		}
	}
	e := &serialEntry{name: name, typ: typ, codec: codec}
	r.serialByName[name] = e
	r.serialByType[typ] = e
}

// RegisterStorable binds name to the dynamic type of prototype for payload
// file I/O. The same panic rules as RegisterSerializable apply.
func (r *Registry) RegisterStorable(name string, prototype any, codec StorableCodec) {
	typ := prototypeType(prototype)
	if codec.Read == nil {
		panic(fmt.Sprintf("persist: registering storable %q (%s) without a read hook", name, typ))
	}
	if codec.Write == nil {
		if _, ok := reflect.Zero(typ).Interface().(FileWriter); !ok {
			panic(fmt.Sprintf("persist: storable %q (%s) has no write hook and does not implement FileWriter", name, typ))
		}
	}
	e := &storableEntry{name: name, typ: typ, codec: codec}
	r.storByName[name] = e
	r.storByType[typ] = e
}

// RegisterInstance binds name to a specific value. Serializing that exact
// value emits a by-name reference instead of its content; deserializing the
// reference yields the value registered at read time.
func (r *Registry) RegisterInstance(name string, v any) {
	r.instances[name] = v
}

// Serializable generic registration helpers. They exist so call sites can
// write typed hooks without the v.(T) boilerplate.

// RegisterSerializableFor registers T under name with typed hooks.
func RegisterSerializableFor[T any](r *Registry, name string,
	encode func(v T, ctx *Context) (manifest.Node, error),
	decode func(n manifest.Node, ctx *Context) (T, error),
) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	codec := SerialCodec{
		Decode: func(n manifest.Node, ctx *Context) (any, error) {
			return decode(n, ctx)
		},
	}
	if encode != nil {
		codec.Encode = func(v any, ctx *Context) (manifest.Node, error) {
			return encode(v.(T), ctx)
		}
	}
	e := &serialEntry{name: name, typ: typ, codec: codec}
	if codec.Encode == nil {
		if _, ok := reflect.Zero(typ).Interface().(Serializable); !ok {
			panic(fmt.Sprintf("persist: %q (%s) has no encode hook and does not implement Serializable", name, typ))
		}
	}
	r.serialByName[name] = e
	r.serialByType[typ] = e
}

// RegisterStorableFor registers T under name with typed file hooks.
func RegisterStorableFor[T any](r *Registry, name string, ext string,
	write func(v T, path string, ctx *Context) error,
	read func(path string, ctx *Context) (T, error),
) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	codec := StorableCodec{
		Ext: ext,
		Read: func(path string, ctx *Context) (any, error) {
			return read(path, ctx)
		},
	}
	if write != nil {
		codec.Write = func(v any, path string, ctx *Context) error {
			return write(v.(T), path, ctx)
		}
	}
	e := &storableEntry{name: name, typ: typ, codec: codec}
	if codec.Write == nil {
		if _, ok := reflect.Zero(typ).Interface().(FileWriter); !ok {
			panic(fmt.Sprintf("persist: storable %q (%s) has no write hook and does not implement FileWriter", name, typ))
		}
	}
	r.storByName[name] = e
	r.storByType[typ] = e
}

// MarkStored makes an already registered serializable type storable as well.
// Its payload file holds the tagged manifest document of the value, written
// with a ".json" suffix.
func (r *Registry) MarkStored(name string) {
	se, ok := r.serialByName[name]
	if !ok {
		panic(fmt.Sprintf("persist: MarkStored(%q): no serializable registered under that name", name))
	}
	e := &storableEntry{
		name: name,
		typ:  se.typ,
		codec: StorableCodec{
			Ext: ".json",
			Write: func(v any, path string, ctx *Context) error {
				return ctx.WriteManifestFile(path, v)
			},
			Read: func(path string, ctx *Context) (any, error) {
				return ctx.ReadManifestFile(path)
			},
		},
	}
	r.storByName[name] = e
	r.storByType[se.typ] = e
}

// IsSerializable reports whether the engine can serialize v: atomic leaves,
// manifest nodes, slices, arrays, maps, registered types and registered
// instances all qualify.
func (r *Registry) IsSerializable(v any) bool {
	if v == nil || manifest.IsAtomic(v) {
		return true
	}
	if _, ok := v.(manifest.Node); ok {
		return true
	}
	if _, ok := r.lookupInstance(v); ok {
		return true
	}
	if _, ok := r.serialByType[reflect.TypeOf(v)]; ok {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// IsStorable reports whether v has a registered payload codec.
func (r *Registry) IsStorable(v any) bool {
	if v == nil {
		return false
	}
	_, ok := r.storByType[reflect.TypeOf(v)]
	return ok
}

// SerialName returns the registered name for v's dynamic type.
func (r *Registry) SerialName(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	e, ok := r.serialByType[reflect.TypeOf(v)]
	if !ok {
		return "", false
	}
	return e.name, true
}

// StorableName returns the registered storable name for v's dynamic type.
func (r *Registry) StorableName(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	e, ok := r.storByType[reflect.TypeOf(v)]
	if !ok {
		return "", false
	}
	return e.name, true
}

// Suffix returns the payload filename suffix for v. A codec-declared
// extension wins; otherwise serializable payloads store as manifest
// documents with ".json" and everything else takes the fallback.
func (r *Registry) Suffix(v any, fallback string) string {
	if name, ok := r.StorableName(v); ok {
		if e := r.storByName[name]; e.codec.Ext != "" {
			return e.codec.Ext
		}
	}
	if r.IsSerializable(v) {
		return ".json"
	}
	return fallback
}

func (r *Registry) serialFor(v any) (*serialEntry, bool) {
	if v == nil {
		return nil, false
	}
	e, ok := r.serialByType[reflect.TypeOf(v)]
	return e, ok
}

func (r *Registry) serialNamed(name string) (*serialEntry, bool) {
	e, ok := r.serialByName[name]
	return e, ok
}

func (r *Registry) storableFor(v any) (*storableEntry, bool) {
	if v == nil {
		return nil, false
	}
	e, ok := r.storByType[reflect.TypeOf(v)]
	return e, ok
}

func (r *Registry) storableNamed(name string) (*storableEntry, bool) {
	e, ok := r.storByName[name]
	return e, ok
}

// lookupInstance finds the name a value was registered under, matching by
// identity rather than equality.
func (r *Registry) lookupInstance(v any) (string, bool) {
	for name, inst := range r.instances {
		if sameValue(inst, v) {
			return name, true
		}
	}
	return "", false
}

func (r *Registry) instanceNamed(name string) (any, bool) {
	v, ok := r.instances[name]
	return v, ok
}

// sameValue compares two values by identity. Pointer-like kinds compare
// their referents; comparable kinds fall back to ==; anything else never
// matches.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	switch ta.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Func, reflect.Map, reflect.UnsafePointer:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	case reflect.Slice:
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		return va.Len() == vb.Len() && (va.Len() == 0 || va.Pointer() == vb.Pointer())
	}
	if ta.Comparable() {
		return a == b
	}
	return false
}

func prototypeType(prototype any) reflect.Type {
	if t, ok := prototype.(reflect.Type); ok {
		return t
	}
	return reflect.TypeOf(prototype)
}
