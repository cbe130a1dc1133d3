package persist

import (
	"fmt"
	"runtime/debug"

	"github.com/wbakker/cairn/manifest"
)

// Wire names of the invalid sentinels.
const (
	nameUnserializable      = "__unserializable"
	nameExcUnserializable   = "__exc_unserializable"
	nameUndeserializable    = "__undeserializable"
	nameExcUndeserializable = "__exc_undeserializable"
	nameNoFile              = "__no_file"
	nameUnWritable          = "__un_writable"
	nameUnReadable          = "__un_readable"
)

// Invalid marks a sentinel standing in for a value the engine could not
// serialize, deserialize, write or read. Sentinels are data, not errors:
// they serialize like any other registered type so a manifest containing
// failures still round-trips.
type Invalid interface {
	// Summary is a one-line description used in log messages.
	Summary() string

	invalid()
}

// Unserializable replaces a value with no registered codec.
type Unserializable struct {
	Type string // name or Go type of the offending value
	Info string
}

func (u Unserializable) invalid()        {}
func (u Unserializable) Summary() string { return fmt.Sprintf("unserializable %q: %s", u.Type, u.Info) }

// ExcUnserializable replaces a value whose encode hook returned an error.
// Trace retains the hook error and the stack at the point of failure.
type ExcUnserializable struct {
	Type  string
	Info  string
	Trace string
}

func (u ExcUnserializable) invalid() {}
func (u ExcUnserializable) Summary() string {
	return fmt.Sprintf("serialization of %q failed: %s", u.Type, u.Info)
}

// Undeserializable replaces a tagged node whose tag has no registered codec.
// Raw retains the stored content verbatim, so re-serializing the sentinel
// loses nothing and a later read with the codec registered recovers the
// value.
type Undeserializable struct {
	Type string
	Info string
	Raw  manifest.Node
}

func (u Undeserializable) invalid() {}
func (u Undeserializable) Summary() string {
	return fmt.Sprintf("undeserializable %q: %s", u.Type, u.Info)
}

// ExcUndeserializable replaces a tagged node whose decode hook returned an
// error. Like Undeserializable it retains the stored content.
type ExcUndeserializable struct {
	Type  string
	Info  string
	Trace string
	Raw   manifest.Node
}

func (u ExcUndeserializable) invalid() {}
func (u ExcUndeserializable) Summary() string {
	return fmt.Sprintf("deserialization of %q failed: %s", u.Type, u.Info)
}

// NoFile replaces record content whose payload file does not exist.
type NoFile struct {
	Target string
}

func (u NoFile) invalid()        {}
func (u NoFile) Summary() string { return fmt.Sprintf("missing payload file %q", u.Target) }

// UnWritable records that a payload could not be written. Trace is set when
// the failure came from a write hook error.
type UnWritable struct {
	Type  string
	Info  string
	Trace string
}

func (u UnWritable) invalid()        {}
func (u UnWritable) Summary() string { return fmt.Sprintf("could not write %q: %s", u.Type, u.Info) }

// UnReadable records that an existing payload could not be read.
type UnReadable struct {
	Type   string
	Info   string
	Trace  string
	Target string
}

func (u UnReadable) invalid()        {}
func (u UnReadable) Summary() string { return fmt.Sprintf("could not read %q: %s", u.Type, u.Info) }

// IsValid reports whether v is real content rather than an invalid sentinel,
// in either live or serialized form.
func IsValid(v any) bool {
	if _, ok := v.(Invalid); ok {
		return false
	}
	if t, ok := v.(manifest.Tagged); ok {
		return !isInvalidName(t.Tag)
	}
	return true
}

func isInvalidName(name string) bool {
	switch name {
	case nameUnserializable, nameExcUnserializable,
		nameUndeserializable, nameExcUndeserializable,
		nameNoFile, nameUnWritable, nameUnReadable:
		return true
	}
	return false
}

// ValidationError is returned in strict mode instead of placing a sentinel.
type ValidationError struct {
	Reason  string
	Invalid Invalid
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("persist: %s: %s", e.Reason, e.Invalid.Summary())
}

// Validate returns a *ValidationError when v is an invalid sentinel and nil
// otherwise. It lets callers re-impose strictness on a value obtained from a
// tolerant read.
func Validate(v any, reason string) error {
	if IsValid(v) {
		return nil
	}
	inv, ok := v.(Invalid)
	if !ok {
		inv = Unserializable{Type: fmt.Sprintf("%T", v), Info: "serialized invalid sentinel"}
	}
	return &ValidationError{Reason: reason, Invalid: inv}
}

// captureTrace renders a hook error together with the stack at the point of
// failure, for embedding in Exc* sentinels.
func captureTrace(err error) string {
	return fmt.Sprintf("%v\n%s", err, debug.Stack())
}

func registerInvalid(r *Registry) {
	RegisterSerializableFor(r, nameUnserializable,
		func(v Unserializable, _ *Context) (manifest.Node, error) {
			return manifest.Map{"type": manifest.String(v.Type), "info": manifest.String(v.Info)}, nil
		},
		func(n manifest.Node, _ *Context) (Unserializable, error) {
			m, _ := n.(manifest.Map)
			return Unserializable{Type: mapString(m, "type"), Info: mapString(m, "info")}, nil
		})

	RegisterSerializableFor(r, nameExcUnserializable,
		func(v ExcUnserializable, _ *Context) (manifest.Node, error) {
			return manifest.Map{
				"type":  manifest.String(v.Type),
				"info":  manifest.String(v.Info),
				"trace": manifest.String(v.Trace),
			}, nil
		},
		func(n manifest.Node, _ *Context) (ExcUnserializable, error) {
			m, _ := n.(manifest.Map)
			return ExcUnserializable{
				Type:  mapString(m, "type"),
				Info:  mapString(m, "info"),
				Trace: mapString(m, "trace"),
			}, nil
		})

	RegisterSerializableFor(r, nameUndeserializable,
		func(v Undeserializable, _ *Context) (manifest.Node, error) {
			m := manifest.Map{"type": manifest.String(v.Type), "info": manifest.String(v.Info)}
			if v.Raw != nil {
				m["stored"] = v.Raw
			}
			return m, nil
		},
		func(n manifest.Node, _ *Context) (Undeserializable, error) {
			m, _ := n.(manifest.Map)
			return Undeserializable{
				Type: mapString(m, "type"),
				Info: mapString(m, "info"),
				Raw:  m["stored"],
			}, nil
		})

	RegisterSerializableFor(r, nameExcUndeserializable,
		func(v ExcUndeserializable, _ *Context) (manifest.Node, error) {
			m := manifest.Map{
				"type":  manifest.String(v.Type),
				"info":  manifest.String(v.Info),
				"trace": manifest.String(v.Trace),
			}
			if v.Raw != nil {
				m["stored"] = v.Raw
			}
			return m, nil
		},
		func(n manifest.Node, _ *Context) (ExcUndeserializable, error) {
			m, _ := n.(manifest.Map)
			return ExcUndeserializable{
				Type:  mapString(m, "type"),
				Info:  mapString(m, "info"),
				Trace: mapString(m, "trace"),
				Raw:   m["stored"],
			}, nil
		})

	RegisterSerializableFor(r, nameNoFile,
		func(v NoFile, _ *Context) (manifest.Node, error) {
			return manifest.Map{"target": manifest.String(v.Target)}, nil
		},
		func(n manifest.Node, _ *Context) (NoFile, error) {
			m, _ := n.(manifest.Map)
			return NoFile{Target: mapString(m, "target")}, nil
		})

	RegisterSerializableFor(r, nameUnWritable,
		func(v UnWritable, _ *Context) (manifest.Node, error) {
			m := manifest.Map{"type": manifest.String(v.Type), "info": manifest.String(v.Info)}
			if v.Trace != "" {
				m["trace"] = manifest.String(v.Trace)
			}
			return m, nil
		},
		func(n manifest.Node, _ *Context) (UnWritable, error) {
			m, _ := n.(manifest.Map)
			return UnWritable{
				Type:  mapString(m, "type"),
				Info:  mapString(m, "info"),
				Trace: mapString(m, "trace"),
			}, nil
		})

	RegisterSerializableFor(r, nameUnReadable,
		func(v UnReadable, _ *Context) (manifest.Node, error) {
			m := manifest.Map{"type": manifest.String(v.Type), "info": manifest.String(v.Info)}
			if v.Trace != "" {
				m["trace"] = manifest.String(v.Trace)
			}
			if v.Target != "" {
				m["target"] = manifest.String(v.Target)
			}
			return m, nil
		},
		func(n manifest.Node, _ *Context) (UnReadable, error) {
			m, _ := n.(manifest.Map)
			return UnReadable{
				Type:   mapString(m, "type"),
				Info:   mapString(m, "info"),
				Trace:  mapString(m, "trace"),
				Target: mapString(m, "target"),
			}, nil
		})
}

func mapString(m manifest.Map, key string) string {
	if s, ok := m[key].(manifest.String); ok {
		return string(s)
	}
	return ""
}
