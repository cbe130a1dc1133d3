package persist

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/wbakker/cairn/manifest"
	"github.com/wbakker/cairn/mount"
)

// Wire names of the model containers. The container types live in a higher
// package; the engine only needs their names to promote storables found in
// plain slices and maps into container form.
const (
	NameListContainer = "_ser__mlist"
	NameDictContainer = "_ser__mdict"
	NameRunsContainer = "_ser__mruns"
)

const nameInstance = "__instance"

// instanceRef is the serialized stand-in for a registered instance.
type instanceRef struct {
	name string
}

// Serialize converts v into a manifest node. Registered types are emitted in
// tagged form so Deserialize can dispatch on the tag. Values the engine
// cannot handle become invalid sentinels in place; the returned error is
// non-nil only for a strict-mode validation failure or a user quit during
// collision prompting.
func (c *Context) Serialize(v any) (manifest.Node, error) {
	return c.serialize(v, false)
}

// SerializeContent is Serialize without the outer type tag, for callers that
// already know the type of the root value.
func (c *Context) SerializeContent(v any) (manifest.Node, error) {
	return c.serialize(v, true)
}

func (c *Context) serialize(v any, contentOnly bool) (manifest.Node, error) {
	if v == nil {
		return manifest.Null{}, nil
	}
	if name, ok := c.reg.lookupInstance(v); ok {
		return manifest.Tagged{Tag: nameInstance, Content: manifest.String(name)}, nil
	}
	if n, ok := v.(manifest.Node); ok {
		return n, nil
	}
	if n, ok := manifest.FromGo(v); ok {
		return n, nil
	}
	if entry, ok := c.reg.serialFor(v); ok {
		return c.serializeObject(v, entry, contentOnly)
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Array:
		return c.serializeList(rv)
	case reflect.Map:
		return c.serializeMap(rv)
	}
	inv := Unserializable{
		Type: fmt.Sprintf("%T", v),
		Info: "no serializable codec registered",
	}
	if err := c.logInvalid("cannot serialize value", inv); err != nil {
		return nil, err
	}
	return c.serializeSentinel(inv, contentOnly)
}

func (c *Context) serializeObject(v any, entry *serialEntry, contentOnly bool) (manifest.Node, error) {
	content, err := entry.encode(v, c)
	if err != nil {
		if isAbort(err) {
			return nil, err
		}
		inv := ExcUnserializable{
			Type:  entry.name,
			Info:  err.Error(),
			Trace: captureTrace(err),
		}
		if e := c.logInvalid("serialization hook failed", inv); e != nil {
			return nil, e
		}
		return c.serializeSentinel(inv, contentOnly)
	}
	if contentOnly {
		return content, nil
	}
	return manifest.Tagged{Tag: entry.name, Content: content}, nil
}

// serializeSentinel encodes an invalid sentinel through its own entry so it
// lands in the manifest exactly where the failed value would have gone.
func (c *Context) serializeSentinel(inv Invalid, contentOnly bool) (manifest.Node, error) {
	entry, ok := c.reg.serialFor(inv)
	if !ok {
		// Sentinels are registered by NewRegistry; a miss means a
		// hand-rolled registry, degrade to a bare string.
		return manifest.String(inv.Summary()), nil
	}
	return c.serializeObject(inv, entry, contentOnly)
}

// shouldPromote reports whether an element of a plain slice or map has to be
// lifted into a record so its payload lands in a file.
func (c *Context) shouldPromote(v any) bool {
	if !c.Mounted() || v == nil {
		return false
	}
	if _, ok := v.(*Record); ok {
		return false
	}
	return c.reg.IsStorable(v)
}

// needsContainer reports whether a plain collection has to be emitted in
// container form: it holds records already, or storables about to be lifted
// into records.
func (c *Context) needsContainer(v any) bool {
	if _, ok := v.(*Record); ok {
		return true
	}
	return c.shouldPromote(v)
}

func (c *Context) serializeList(rv reflect.Value) (manifest.Node, error) {
	n := rv.Len()
	promote := false
	for i := 0; i < n && !promote; i++ {
		promote = c.needsContainer(rv.Index(i).Interface())
	}
	items := make(manifest.List, 0, n)
	for i := 0; i < n; i++ {
		item := rv.Index(i).Interface()
		if c.shouldPromote(item) {
			rec := c.promote(item)
			if elem := rv.Index(i); elem.CanSet() && reflect.TypeOf(rec).AssignableTo(elem.Type()) {
				elem.Set(reflect.ValueOf(rec))
			}
			item = rec
		}
		node, err := c.Serialize(item)
		if err != nil {
			return nil, err
		}
		items = append(items, node)
	}
	if !promote {
		return items, nil
	}
	return manifest.Tagged{
		Tag:     NameListContainer,
		Content: manifest.Map{"store": items},
	}, nil
}

func (c *Context) serializeMap(rv reflect.Value) (manifest.Node, error) {
	promote := false
	for _, key := range rv.MapKeys() {
		if c.needsContainer(rv.MapIndex(key).Interface()) {
			promote = true
			break
		}
	}
	out := make(manifest.Map, rv.Len())
	for _, key := range rv.MapKeys() {
		item := rv.MapIndex(key).Interface()
		if c.shouldPromote(item) {
			rec := c.promote(item)
			if reflect.TypeOf(rec).AssignableTo(rv.Type().Elem()) {
				rv.SetMapIndex(key, reflect.ValueOf(rec))
			}
			item = rec
		}
		node, err := c.Serialize(item)
		if err != nil {
			return nil, err
		}
		out[mapKey(key)] = node
	}
	if !promote {
		return out, nil
	}
	return manifest.Tagged{
		Tag:     NameDictContainer,
		Content: manifest.Map{"store": out},
	}, nil
}

// promote wraps a storable found inside a plain collection in a record with
// default settings, the same lift the model containers perform explicitly.
// The record is written back into the collection slot when its type allows,
// so the next pass over the same collection reuses the resolved target
// instead of minting a fresh one. The promoted payload lands next to the
// manifest rather than in a random subdirectory.
func (c *Context) promote(v any) *Record {
	rec, err := NewRecord(c.reg, v, InTarget(mount.Target{Subdir: mount.Value("")}))
	if err != nil {
		// shouldPromote already confirmed storability.
		panic(err)
	}
	return rec
}

func mapKey(key reflect.Value) string {
	if key.Kind() == reflect.String {
		return key.String()
	}
	return fmt.Sprint(key.Interface())
}

// Deserialize reconstructs the value a manifest node encodes. Unknown tags
// and failing decode hooks become sentinels in place, mirroring Serialize.
func (c *Context) Deserialize(n manifest.Node) (any, error) {
	switch x := n.(type) {
	case nil, manifest.Null:
		return nil, nil
	case manifest.String:
		return string(x), nil
	case manifest.Int:
		return int64(x), nil
	case manifest.Float:
		return float64(x), nil
	case manifest.Bool:
		return bool(x), nil
	case manifest.List:
		out := make([]any, 0, len(x))
		for _, item := range x {
			v, err := c.Deserialize(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case manifest.Map:
		out := make(map[string]any, len(x))
		for _, key := range x.SortedKeys() {
			v, err := c.Deserialize(x[key])
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	case manifest.Tagged:
		return c.DeserializeAs(x.Content, x.Tag)
	}
	return nil, fmt.Errorf("persist: unknown manifest node %T", n)
}

// DeserializeAs decodes content as the named registered type, bypassing the
// tag lookup. Decoding an undeserializable sentinel whose type has been
// registered since it was written recovers the original value from the
// retained content.
func (c *Context) DeserializeAs(content manifest.Node, name string) (any, error) {
	entry, ok := c.reg.serialNamed(name)
	if !ok {
		inv := Undeserializable{
			Type: name,
			Info: "no deserialization codec registered",
			Raw:  content,
		}
		if err := c.logInvalid("cannot deserialize node", inv); err != nil {
			return nil, err
		}
		return inv, nil
	}
	v, err := entry.codec.Decode(content, c)
	if err != nil {
		if isAbort(err) {
			return nil, err
		}
		inv := ExcUndeserializable{
			Type:  name,
			Info:  err.Error(),
			Trace: captureTrace(err),
			Raw:   content,
		}
		if e := c.logInvalid("deserialization hook failed", inv); e != nil {
			return nil, e
		}
		return inv, nil
	}
	if u, ok := v.(Undeserializable); ok && u.Raw != nil {
		if _, registered := c.reg.serialNamed(u.Type); registered {
			return c.DeserializeAs(u.Raw, u.Type)
		}
	}
	return v, nil
}

// isAbort reports whether err must cancel the whole traversal rather than be
// contained as a sentinel.
func isAbort(err error) bool {
	var quit *mount.UserQuitError
	var validation *ValidationError
	return errors.As(err, &quit) || errors.As(err, &validation)
}
