package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wbakker/cairn/manifest"
	"github.com/wbakker/cairn/mount"
	"github.com/wbakker/cairn/persist"
)

// Session binds a registry and a logger for repository operations. Sessions
// are cheap and safe to share; each operation opens its own mount.
type Session struct {
	reg    *persist.Registry
	log    *slog.Logger
	strict bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithStrict turns sentinel placement into immediate errors for every
// operation of the session.
func WithStrict(strict bool) SessionOption {
	return func(s *Session) { s.strict = strict }
}

// New returns a session over reg.
func New(reg *persist.Registry, opts ...SessionOption) *Session {
	s := &Session{reg: reg, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a single repository operation.
type Option func(*options)

type options struct {
	subdir    string
	cluster   *bool
	generator string
	base      string
	ignore    *bool

	defaultValue   any
	haveDefault    bool
	defaultFactory func() any
}

// InSubdir stores the key below an extra subdirectory of the generator
// folder.
func InSubdir(subdir string) Option {
	return func(o *options) { o.subdir = subdir }
}

// WithCluster toggles the per-key subdirectory. Enabled by default for
// manifests, disabled for bare payload stores.
func WithCluster(cluster bool) Option {
	return func(o *options) { o.cluster = &cluster }
}

// WithGenerator overrides the generator label derived from the running
// script.
func WithGenerator(generator string) Option {
	return func(o *options) { o.generator = generator }
}

// WithBase overrides the root directory instead of walking up to the root
// marker.
func WithBase(base string) Option {
	return func(o *options) { o.base = base }
}

// WithIgnoreFiles toggles ignore-list maintenance for the operation.
func WithIgnoreFiles(enabled bool) Option {
	return func(o *options) { o.ignore = &enabled }
}

// WithDefault makes Load return v when the key has no file.
func WithDefault(v any) Option {
	return func(o *options) { o.defaultValue, o.haveDefault = v, true }
}

// WithDefaultFactory makes Load call factory when the key has no file.
// A WithDefault value takes precedence.
func WithDefaultFactory(factory func() any) Option {
	return func(o *options) { o.defaultFactory = factory }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// KeyError reports that a key has no saved file and no default was given.
type KeyError struct {
	Key  string
	Path string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("repo: no file for key %q at %q", e.Key, e.Path)
}

func (e *KeyError) Unwrap() error { return fs.ErrNotExist }

// mountFor opens the mount a key's files live under.
func (s *Session) mountFor(key string, o options, clusterDefault bool) (*mount.Mount, error) {
	cluster := clusterDefault
	if o.cluster != nil {
		cluster = *o.cluster
	}
	mopts := []mount.Option{
		mount.WithCluster(cluster),
		mount.WithLogger(s.log),
	}
	if o.subdir != "" {
		mopts = append(mopts, mount.WithSubdir(o.subdir))
	}
	if o.generator != "" {
		mopts = append(mopts, mount.WithGenerator(o.generator))
	}
	if o.base != "" {
		mopts = append(mopts, mount.WithBase(o.base))
	}
	if o.ignore != nil {
		mopts = append(mopts, mount.WithIgnoreFiles(*o.ignore))
	}
	return mount.New(key, mopts...)
}

func (s *Session) contextOn(mnt *mount.Mount) *persist.Context {
	return persist.NewContext(s.reg,
		persist.WithMount(mnt),
		persist.WithLogger(s.log),
		persist.WithStrict(s.strict))
}

func manifestTarget(key string) mount.Target {
	return mount.Target{
		Stem:   mount.Value(key),
		Suffix: mount.Value(".json"),
		Subdir: mount.Value(""),
	}
}

// Save serializes v and writes its manifest under key. Storables that are
// not serializable themselves are wrapped in a record first; anything else
// that is neither is a usage error.
func (s *Session) Save(key string, v any, opts ...Option) error {
	if !s.reg.IsSerializable(v) {
		if !s.reg.IsStorable(v) {
			return fmt.Errorf("repo: cannot save %T, not serializable or storable", v)
		}
		rec, err := persist.NewRecord(s.reg, v,
			persist.InTarget(mount.Target{Subdir: mount.Value("")}))
		if err != nil {
			return err
		}
		v = rec
	}
	mnt, err := s.mountFor(key, collect(opts), true)
	if err != nil {
		return err
	}
	ctx := s.contextOn(mnt)
	target, err := mnt.Prepare(manifestTarget(key), "")
	if err != nil {
		return err
	}
	rel, err := target.Path()
	if err != nil {
		return err
	}
	path := filepath.Join(mnt.Dir(), rel)
	s.log.Info("saving", "key", key, "path", path)
	if err := ctx.WriteManifestFile(path, v); err != nil {
		return err
	}
	return mnt.Close()
}

// Load reads the object saved under key. When no file exists the configured
// default is returned instead; without one, the error wraps fs.ErrNotExist.
func (s *Session) Load(key string, opts ...Option) (any, error) {
	o := collect(opts)
	mnt, err := s.mountFor(key, o, true)
	if err != nil {
		return nil, err
	}
	ctx := s.contextOn(mnt)
	path := filepath.Join(mnt.Dir(), key+".json")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if o.haveDefault {
			return o.defaultValue, nil
		}
		if o.defaultFactory != nil {
			return o.defaultFactory(), nil
		}
		return nil, &KeyError{Key: key, Path: path}
	}
	s.log.Info("loading", "key", key, "path", path)
	v, err := ctx.ReadManifestFile(path)
	if err != nil {
		return nil, err
	}
	if err := mnt.Close(); err != nil {
		return nil, err
	}
	return v, nil
}

// Store writes a bare payload file for a storable under key, named after
// the key, without a manifest document. It returns the record fragment that
// a manifest would contain.
func (s *Session) Store(key string, v any, opts ...Option) (manifest.Node, error) {
	if !s.reg.IsStorable(v) {
		return nil, fmt.Errorf("repo: cannot store %T, not a registered storable", v)
	}
	mnt, err := s.mountFor(key, collect(opts), false)
	if err != nil {
		return nil, err
	}
	ctx := s.contextOn(mnt)
	rec, err := persist.NewRecord(s.reg, v, persist.InTarget(mount.Target{
		Stem:   mount.Value(key),
		Subdir: mount.Value(""),
	}))
	if err != nil {
		return nil, err
	}
	s.log.Info("storing", "key", key, "dir", mnt.Dir())
	n, err := ctx.Serialize(rec)
	if err != nil {
		return nil, err
	}
	return n, mnt.Close()
}

// Clean removes the files saved under key: the payloads owned by the object
// graph, the manifest itself, and stale ignore-list entries. A key that was
// never saved is a no-op.
func (s *Session) Clean(key string, opts ...Option) error {
	v, err := s.Load(key, append(opts, WithDefault(nil))...)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	o := collect(opts)
	mnt, err := s.mountFor(key, o, true)
	if err != nil {
		return err
	}
	ctx := s.contextOn(mnt)
	s.log.Info("cleaning", "key", key, "dir", mnt.Dir())
	if err := ctx.Remove(v); err != nil {
		return err
	}
	if err := mnt.Remove(manifestTarget(key)); err != nil {
		return err
	}
	if err := mnt.Close(); err != nil {
		return err
	}
	if entries, err := os.ReadDir(mnt.Dir()); err == nil && len(entries) == 0 {
		if err := os.Remove(mnt.Dir()); err != nil {
			return err
		}
	}
	return s.dropIgnoreEntry(key, o, mnt)
}

// dropIgnoreEntry clears the key from the ignore list a previous save left
// behind once the key's directory is gone.
func (s *Session) dropIgnoreEntry(key string, o options, mnt *mount.Mount) error {
	cluster := true
	if o.cluster != nil {
		cluster = *o.cluster
	}
	if cluster {
		if _, err := os.Stat(mnt.Dir()); !errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return mount.DropIgnoreEntries(filepath.Dir(mnt.Dir()), filepath.Base(mnt.Dir()))
	}
	return mount.DropIgnoreEntries(mnt.Dir(), key+".json")
}
