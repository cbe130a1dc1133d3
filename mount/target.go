package mount

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Field is an optional string used by Target. The zero value is unset,
// which marks a hole that merging can fill; an explicitly set empty string
// is a legitimate value and distinct from unset.
type Field struct {
	value string
	set   bool
}

// Value returns a set field.
func Value(s string) Field {
	return Field{value: s, set: true}
}

// Auto returns an unset field.
func Auto() Field {
	return Field{}
}

// IsSet reports whether the field holds a value.
func (f Field) IsSet() bool { return f.set }

// String returns the held value, empty when unset.
func (f Field) String() string { return f.value }

// Or returns the field itself when set, the fallback otherwise.
func (f Field) Or(fallback Field) Field {
	if f.set {
		return f
	}
	return fallback
}

// Target describes a file relative to a directory as
// <subdir>/<stem><suffix>. Unset fields are filled by merging with other
// targets; a target is complete once all fields hold values.
type Target struct {
	Stem   Field
	Suffix Field
	Subdir Field
}

// NewTarget builds a target from a name or a stem/suffix pair. Providing a
// name together with a stem or suffix is a programmer error and fails
// immediately.
func NewTarget(stem, suffix, name, subdir string) (Target, error) {
	t := Target{}
	if subdir != "" {
		t.Subdir = Value(subdir)
	}
	if name != "" {
		if stem != "" || suffix != "" {
			return Target{}, &TargetError{Target: t, Reason: "provide either a name or a stem and suffix, not both"}
		}
		return t.WithName(name), nil
	}
	if stem != "" {
		t.Stem = Value(stem)
	}
	if suffix != "" {
		t.Suffix = Value(suffix)
	}
	return t, nil
}

// TargetFromPath splits a relative path into a complete target.
func TargetFromPath(p string) Target {
	dir, name := path.Split(filepath.ToSlash(p))
	t := Target{Subdir: Value(strings.TrimSuffix(dir, "/"))}
	return t.WithName(name)
}

// WithName returns a copy with stem and suffix taken from the file name.
func (t Target) WithName(name string) Target {
	ext := path.Ext(name)
	t.Stem = Value(strings.TrimSuffix(name, ext))
	t.Suffix = Value(ext)
	return t
}

// Name returns the base file name, stem plus suffix.
func (t Target) Name() string {
	return t.Stem.String() + t.Suffix.String()
}

// Complete reports whether every field holds a value.
func (t Target) Complete() bool {
	return t.Stem.IsSet() && t.Suffix.IsSet() && t.Subdir.IsSet()
}

// Merge fills the receiver's fields from overrides: for each field the
// override wins unless it is unset, in which case the receiver's value is
// kept. Later overrides take precedence over earlier ones.
func (t Target) Merge(overrides ...Target) Target {
	out := t
	for _, o := range overrides {
		out = Target{
			Stem:   o.Stem.Or(out.Stem),
			Suffix: o.Suffix.Or(out.Suffix),
			Subdir: o.Subdir.Or(out.Subdir),
		}
	}
	return out
}

// Path returns the relative path the target denotes. Incomplete targets
// cannot be turned into paths.
func (t Target) Path() (string, error) {
	if !t.Complete() {
		return "", &TargetError{Target: t, Reason: "incomplete target"}
	}
	return filepath.Join(t.Subdir.String(), t.Name()), nil
}

// key is the identity used for touched/removed tracking. Complete targets
// compare by normalized path.
func (t Target) key() string {
	if t.Complete() {
		return filepath.Clean(filepath.Join(t.Subdir.String(), t.Name()))
	}
	return fmt.Sprintf("(%s,%s,%s)", t.Stem.String(), t.Suffix.String(), t.Subdir.String())
}

// Equal reports whether two targets denote the same location.
func (t Target) Equal(other Target) bool {
	return t.key() == other.key() && t.Complete() == other.Complete()
}

func (t Target) String() string {
	if t.Complete() {
		p, _ := t.Path()
		return p
	}
	display := func(f Field) string {
		if !f.IsSet() {
			return "<auto>"
		}
		return f.String()
	}
	return fmt.Sprintf("target(%s, %s, %s)", display(t.Stem), display(t.Suffix), display(t.Subdir))
}
