package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wbakker/cairn/manifest"
	"github.com/wbakker/cairn/mount"
)

// Context threads the registry, the logger and the current mount through a
// serialization traversal. Contexts are cheap values: Join returns a copy
// scoped to a subdirectory, so a traversal descending into records never
// mutates its parent's state.
//
// A context without a mount can serialize and deserialize but not store:
// record writes degrade to UnWritable sentinels.
type Context struct {
	reg    *Registry
	log    *slog.Logger
	strict bool
	mnt    *mount.Mount
	subdir string
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithLogger sets the logger used for sentinel warnings.
func WithLogger(log *slog.Logger) ContextOption {
	return func(c *Context) { c.log = log }
}

// WithStrict makes the context return a *ValidationError wherever it would
// otherwise place an invalid sentinel.
func WithStrict(strict bool) ContextOption {
	return func(c *Context) { c.strict = strict }
}

// WithMount attaches a mount, enabling record storage relative to it.
func WithMount(m *mount.Mount) ContextOption {
	return func(c *Context) { c.mnt = m }
}

// NewContext returns a context over reg.
func NewContext(reg *Registry, opts ...ContextOption) *Context {
	c := &Context{reg: reg, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry this context dispatches against.
func (c *Context) Registry() *Registry { return c.reg }

// Mounted reports whether the context can store payload files.
func (c *Context) Mounted() bool { return c.mnt != nil }

// Strict reports whether sentinel creation is promoted to an error.
func (c *Context) Strict() bool { return c.strict }

// Join returns a copy of the context scoped to subdir below the current
// directory.
func (c *Context) Join(subdir string) *Context {
	if subdir == "" {
		return c
	}
	next := *c
	next.subdir = filepath.Join(c.subdir, subdir)
	return &next
}

// Directory returns the absolute directory the context currently points at,
// or "" when unmounted.
func (c *Context) Directory() string {
	if c.mnt == nil {
		return ""
	}
	abs, _ := c.mnt.Abs(c.subdir, false)
	return abs
}

// rel renders an absolute path relative to the mount root for log output.
func (c *Context) rel(path string) string {
	if c.mnt == nil {
		return path
	}
	rel, err := filepath.Rel(c.mnt.Dir(), path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// logInvalid records a sentinel placement. In strict mode it returns the
// failure as an error instead, aborting the traversal.
func (c *Context) logInvalid(reason string, inv Invalid) error {
	if c.strict {
		return &ValidationError{Reason: reason, Invalid: inv}
	}
	c.log.Warn(reason, "detail", inv.Summary())
	return nil
}

// scope rebases target below the context's current subdirectory.
func (c *Context) scope(t mount.Target) mount.Target {
	if c.subdir == "" {
		return t
	}
	return t.Merge(mount.Target{Subdir: mount.Value(filepath.Join(c.subdir, t.Subdir.String()))})
}

// prepare registers target with the mount, applying the collision policy,
// and returns the context scoped to the target's directory together with the
// resolved target.
func (c *Context) prepare(t mount.Target) (*Context, mount.Target, error) {
	resolved, err := c.mnt.Prepare(c.scope(t), "")
	if err != nil {
		return nil, mount.Target{}, err
	}
	local := *c
	local.subdir = resolved.Subdir.String()
	return &local, resolved, nil
}

// WriteTarget stores v at target under the mount. Collisions follow the
// mount's policy, so the returned target may differ from the requested one.
// A failure to produce the file is contained as an UnWritable sentinel; only
// a user quit during collision prompting aborts with an error.
func (c *Context) WriteTarget(t mount.Target, v any) (mount.Target, Invalid, error) {
	if c.mnt == nil {
		return t, UnWritable{
			Type: typeLabel(c.reg, v),
			Info: "no mount attached, content will not be stored",
		}, nil
	}
	local, resolved, err := c.prepare(t)
	if err != nil {
		var quit *mount.UserQuitError
		if errors.As(err, &quit) {
			return t, nil, err
		}
		return t, UnWritable{Type: typeLabel(c.reg, v), Info: err.Error()}, nil
	}
	out := c.unscope(resolved)
	entry, ok := c.reg.storableFor(v)
	if !ok {
		return out, UnWritable{
			Type: typeLabel(c.reg, v),
			Info: "no storable codec registered",
		}, nil
	}
	rel, err := resolved.Path()
	if err != nil {
		return out, UnWritable{Type: entry.name, Info: err.Error()}, nil
	}
	path := filepath.Join(c.mnt.Dir(), rel)
	if err := entry.write(v, path, local); err != nil {
		return out, UnWritable{
			Type:  entry.name,
			Info:  err.Error(),
			Trace: captureTrace(err),
		}, nil
	}
	c.log.Debug("stored payload", "type", entry.name, "path", c.rel(path))
	return out, nil, nil
}

// unscope rewrites a mount-root-relative target back into the context's
// coordinate frame, so stored manifests stay relocatable.
func (c *Context) unscope(t mount.Target) mount.Target {
	if c.subdir == "" {
		return t
	}
	rel, err := filepath.Rel(c.subdir, t.Subdir.String())
	if err != nil {
		return t
	}
	if rel == "." {
		rel = ""
	}
	return t.Merge(mount.Target{Subdir: mount.Value(rel)})
}

// ReadTarget loads the payload of storable type name at target. Failures are
// returned as sentinels in place of the value: NoFile when the payload is
// missing, UnReadable for anything else.
func (c *Context) ReadTarget(t mount.Target, name string) any {
	if c.mnt == nil {
		return UnReadable{Type: name, Info: "no mount attached"}
	}
	// Claim without collision handling so Close still lists the file in
	// the ignore list.
	c.mnt.Claim(c.scope(t))
	local := c.Join(t.Subdir.String())
	path := filepath.Join(local.Directory(), t.Name())
	entry, ok := c.reg.storableNamed(name)
	if !ok {
		return UnReadable{Type: name, Info: "no storable codec registered", Target: c.rel(path)}
	}
	v, err := entry.codec.Read(path, local)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NoFile{Target: c.rel(path)}
		}
		return UnReadable{
			Type:   name,
			Info:   err.Error(),
			Trace:  captureTrace(err),
			Target: c.rel(path),
		}
	}
	return v
}

// Open prepares target and opens its file with the given flags, claiming it
// for the mount's ignore list. The caller owns the returned handle.
func (c *Context) Open(t mount.Target, flag int, perm os.FileMode) (*os.File, mount.Target, error) {
	if c.mnt == nil {
		return nil, mount.Target{}, errors.New("persist: open requires a mounted context")
	}
	f, prepared, err := c.mnt.OpenFile(c.scope(t), flag, perm)
	if err != nil {
		return nil, mount.Target{}, err
	}
	return f, c.unscope(prepared), nil
}

// RemoveTarget deletes the payload file at target, first giving v a chance
// to remove state it owns underneath.
func (c *Context) RemoveTarget(t mount.Target, v any) error {
	if c.mnt == nil {
		return nil
	}
	if err := c.Remove(v); err != nil {
		return err
	}
	local := c.Join(t.Subdir.String())
	return c.mnt.Remove(mount.TargetFromPath(filepath.Join(local.subdir, t.Name())))
}

// Remove walks v and invokes RemoveWith on every removable value, letting
// records and containers delete their payload files before the references
// are dropped.
func (c *Context) Remove(v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case Removable:
		return x.RemoveWith(c)
	case []any:
		for _, item := range x {
			if err := c.Remove(item); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, item := range x {
			if err := c.Remove(item); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// WriteManifestFile serializes v in tagged form and writes the document to
// path.
func (c *Context) WriteManifestFile(path string, v any) error {
	n, err := c.Serialize(v)
	if err != nil {
		return err
	}
	data, err := manifest.Encode(n)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadManifestFile decodes the document at path and deserializes its root.
func (c *Context) ReadManifestFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n, err := manifest.Decode(data)
	if err != nil {
		return nil, err
	}
	return c.Deserialize(n)
}

func typeLabel(r *Registry, v any) string {
	if name, ok := r.StorableName(v); ok {
		return name
	}
	if name, ok := r.SerialName(v); ok {
		return name
	}
	return fmt.Sprintf("%T", v)
}
