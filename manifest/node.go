package manifest

import (
	"encoding/json"
	"sort"
)

// Wire keys used for tagged nodes.
const (
	TagKey     = "_ser__type"
	ContentKey = "_ser__content"
)

// Node is a sealed interface over the value types a manifest can hold.
// Only String, Int, Float, Bool, Null, List, Map and Tagged implement it.
type Node interface {
	node() // sealed
}

// String is a string leaf.
type String string

func (String) node() {}

// Int is an integer leaf. Always int64.
type Int int64

func (Int) node() {}

// Float is a floating point leaf.
type Float float64

func (Float) node() {}

// Bool is a boolean leaf.
type Bool bool

func (Bool) node() {}

// Null is an explicit null leaf. Using a concrete type keeps nil Node
// distinguishable from a present-but-null value.
type Null struct{}

func (Null) node() {}

// List is an ordered sequence of nodes.
type List []Node

func (List) node() {}

// Map holds string-keyed nodes. Keys are always stringified; use SortedKeys
// for deterministic iteration.
type Map map[string]Node

func (Map) node() {}

// SortedKeys returns the map keys in sorted order.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tagged wraps the serialized content of a registered type together with its
// registered name.
type Tagged struct {
	Tag     string
	Content Node
}

func (Tagged) node() {}

// FromGo converts an atomic Go value to its Node. The second return reports
// whether the value was atomic. Node values pass through unchanged.
func FromGo(v any) (Node, bool) {
	switch val := v.(type) {
	case nil:
		return Null{}, true
	case Node:
		return val, true
	case string:
		return String(val), true
	case bool:
		return Bool(val), true
	case int:
		return Int(val), true
	case int8:
		return Int(val), true
	case int16:
		return Int(val), true
	case int32:
		return Int(val), true
	case int64:
		return Int(val), true
	case uint:
		return Int(val), true
	case uint8:
		return Int(val), true
	case uint16:
		return Int(val), true
	case uint32:
		return Int(val), true
	case uint64:
		return Int(val), true
	case float32:
		return Float(val), true
	case float64:
		return Float(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), true
		}
		f, err := val.Float64()
		if err != nil {
			return nil, false
		}
		return Float(f), true
	default:
		return nil, false
	}
}

// IsAtomic reports whether a Go value converts to an atomic leaf node.
func IsAtomic(v any) bool {
	n, ok := FromGo(v)
	if !ok {
		return false
	}
	switch n.(type) {
	case String, Int, Float, Bool, Null:
		return true
	default:
		return false
	}
}

// Atomic converts a leaf node back to its Go value. The second return
// reports whether the node was a leaf.
func Atomic(n Node) (any, bool) {
	switch val := n.(type) {
	case String:
		return string(val), true
	case Int:
		return int64(val), true
	case Float:
		return float64(val), true
	case Bool:
		return bool(val), true
	case Null:
		return nil, true
	default:
		return nil, false
	}
}

// Equal reports whether two nodes encode the same tree.
func Equal(a, b Node) bool {
	switch av := a.(type) {
	case String, Int, Float, Bool, Null:
		return a == b
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvk, ok := bv[k]
			if !ok || !Equal(v, bvk) {
				return false
			}
		}
		return true
	case Tagged:
		bv, ok := b.(Tagged)
		return ok && av.Tag == bv.Tag && Equal(av.Content, bv.Content)
	case nil:
		return b == nil
	default:
		return false
	}
}
