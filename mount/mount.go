package mount

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Prompter supplies replacement names when the prompt collision policy is
// active. Implementations typically ask the user on a terminal.
type Prompter interface {
	// ReplaceTarget is called with the colliding target and an
	// auto-derived suggestion. It returns a new file name, or one of the
	// Answer sentinels.
	ReplaceTarget(target Target, suggestion string) (string, error)
}

// Sentinel answers a Prompter can return.
const (
	// AnswerAuto accepts the suggestion and switches the mount to the
	// auto policy for the rest of the session.
	AnswerAuto = "!auto"
	// AnswerQuit cancels the operation.
	AnswerQuit = "!quit"
	// AnswerKeep overwrites the existing file.
	AnswerKeep = "!keep"
)

// Mount owns a directory subtree for the duration of an open/close bracket.
// It resolves Targets to concrete paths, applies the collision policy,
// tracks which files it touched for the ignore list, and prunes empty
// directories on Close.
type Mount struct {
	dir      string
	cluster  bool
	ignore   bool
	policy   Policy
	prompter Prompter
	suffix   string
	log      *slog.Logger

	touched    []Target
	touchedSet map[string]struct{}
	removed    []Target

	// Directory-shaping fields read by New before the mount exists.
	specSubdir    string
	specGenerator string
	specBase      string
}

// Option configures a Mount.
type Option func(*Mount)

// WithCluster stores the mounted key in its own subdirectory.
func WithCluster(cluster bool) Option {
	return func(m *Mount) { m.cluster = cluster }
}

// WithIgnoreFiles toggles ignore-list emission on Close.
func WithIgnoreFiles(enabled bool) Option {
	return func(m *Mount) { m.ignore = enabled }
}

// WithPolicy sets the collision policy.
func WithPolicy(p Policy) Option {
	return func(m *Mount) { m.policy = p }
}

// WithPrompter sets the prompter consulted by the prompt policy.
func WithPrompter(p Prompter) Option {
	return func(m *Mount) { m.prompter = p }
}

// WithDefaultSuffix sets the fallback suffix for payload files.
func WithDefaultSuffix(suffix string) Option {
	return func(m *Mount) { m.suffix = suffix }
}

// WithLogger sets the logger used for mount events.
func WithLogger(log *slog.Logger) Option {
	return func(m *Mount) { m.log = log }
}

// WithConfig applies loaded configuration as defaults.
func WithConfig(cfg Config) Option {
	return func(m *Mount) {
		m.policy = cfg.OnCollision
		m.suffix = cfg.DefaultSuffix
		m.ignore = cfg.ignoreFiles()
	}
}

// NewAt constructs a mount rooted at the given directory. The directory is
// created lazily on the first write.
func NewAt(directory string, opts ...Option) *Mount {
	abs, err := filepath.Abs(directory)
	if err != nil {
		abs = directory
	}
	m := &Mount{
		dir:        abs,
		ignore:     true,
		policy:     PolicyIgnore,
		suffix:     DefaultConfig().DefaultSuffix,
		log:        slog.Default(),
		touchedSet: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// New constructs the mount where files for the given key live:
// <root>/<generator>/<subdir>/<key> when clustered (the default), or
// <root>/<generator>/<subdir> when not, in which case files carry the key in
// their name. The generator defaults to "cache/<script label>". Settings
// from <root>/config.yaml apply unless overridden by options.
func New(key string, opts ...Option) (*Mount, error) {
	// Scan the options once to pick up the fields that shape the
	// directory before the mount exists.
	scratch := &Mount{cluster: true, touchedSet: map[string]struct{}{}}
	for _, opt := range opts {
		opt(scratch)
	}
	base := scratch.specBase
	if base == "" {
		root, err := FindRoot("")
		if err != nil {
			return nil, err
		}
		base = root
	}
	cfg, err := LoadConfig(base)
	if err != nil {
		return nil, err
	}
	generator := scratch.specGenerator
	if generator == "" {
		generator = filepath.Join("cache", ScriptLabel(base))
	}
	subdir := scratch.specSubdir
	if scratch.cluster {
		// Clustered keys own a directory; otherwise files carry the key
		// in their name and share the generator folder.
		subdir = filepath.Join(subdir, key)
	}
	dir := filepath.Join(base, generator, subdir)

	merged := append([]Option{WithConfig(cfg), WithCluster(scratch.cluster)}, opts...)
	return NewAt(dir, merged...), nil
}

// WithSubdir places the key mount below an extra subdirectory of the
// generator folder. Only meaningful with New.
func WithSubdir(subdir string) Option {
	return func(m *Mount) { m.specSubdir = subdir }
}

// WithGenerator overrides the generator label. Only meaningful with New.
func WithGenerator(generator string) Option {
	return func(m *Mount) { m.specGenerator = generator }
}

// WithBase overrides the root directory. Only meaningful with New.
func WithBase(base string) Option {
	return func(m *Mount) { m.specBase = base }
}

// Dir returns the absolute directory the mount is rooted at.
func (m *Mount) Dir() string { return m.dir }

// DefaultSuffix returns the fallback suffix for payload files.
func (m *Mount) DefaultSuffix() string { return m.suffix }

// Contains reports whether path falls inside the mount's subtree.
func (m *Mount) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(m.dir, abs)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// Abs resolves a path relative to the mount root. With validate set, paths
// escaping the subtree fail with a MountError.
func (m *Mount) Abs(path string, validate bool) (string, error) {
	abs := filepath.Join(m.dir, path)
	if validate && !m.Contains(abs) {
		return "", &MountError{Mount: m.dir, Path: path}
	}
	return abs, nil
}

// Normalize turns a path into a complete target relative to the mount root.
func (m *Mount) Normalize(path string, validate bool) (Target, error) {
	abs, err := m.Abs(path, validate)
	if err != nil {
		return Target{}, err
	}
	rel, err := filepath.Rel(m.dir, abs)
	if err != nil {
		return Target{}, fmt.Errorf("normalize %q: %w", path, err)
	}
	return TargetFromPath(rel), nil
}

var stemIndex = regexp.MustCompile(`[0-9]+$`)

// nextFree derives the first untouched variant of target by appending or
// incrementing a trailing index on the stem.
func (m *Mount) nextFree(t Target) Target {
	for m.isTouched(t) {
		stem := t.Stem.String()
		if match := stemIndex.FindString(stem); match != "" {
			n, _ := strconv.Atoi(match)
			stem = strings.TrimSuffix(stem, match) + strconv.Itoa(n+1)
		} else {
			stem += "0"
		}
		t = t.Merge(Target{Stem: Value(stem)})
	}
	return t
}

func (m *Mount) isTouched(t Target) bool {
	_, ok := m.touchedSet[t.key()]
	return ok
}

func (m *Mount) touch(t Target) {
	if m.isTouched(t) {
		return
	}
	m.touched = append(m.touched, t)
	m.touchedSet[t.key()] = struct{}{}
}

// register claims a target for the current writer. A target claimed before
// is resolved according to the collision policy; the returned target is the
// one the caller should write to.
func (m *Mount) register(t Target, policy Policy) (Target, error) {
	if policy == "" {
		policy = m.policy
	}
	if !m.isTouched(t) {
		m.touch(t)
		return t, nil
	}

	switch policy {
	case PolicyIgnore:
		m.log.Warn("overwriting previously stored target", "target", t.String())
		return t, nil
	case PolicyAuto:
		free := m.nextFree(t)
		m.touch(free)
		return free, nil
	case PolicyQuit:
		return Target{}, &UserQuitError{Target: t}
	case PolicyPrompt:
		return m.prompt(t)
	default:
		return Target{}, fmt.Errorf("unknown collision policy %q", policy)
	}
}

func (m *Mount) prompt(t Target) (Target, error) {
	if m.prompter == nil {
		// No prompter wired in, fall back to auto.
		return m.register(t, PolicyAuto)
	}
	suggestion := m.nextFree(t)
	answer, err := m.prompter.ReplaceTarget(t, suggestion.Name())
	if err != nil {
		return Target{}, fmt.Errorf("prompt for %s: %w", t, err)
	}
	switch answer {
	case AnswerAuto:
		m.policy = PolicyAuto
		return m.register(t, PolicyAuto)
	case AnswerQuit:
		return Target{}, &UserQuitError{Target: t}
	case AnswerKeep, "":
		return t, nil
	default:
		return m.register(t.WithName(answer), PolicyPrompt)
	}
}

// Prepare claims a target, creates its directory, and returns the concrete
// target the caller should use. An empty policy uses the mount's default.
func (m *Mount) Prepare(t Target, policy Policy) (Target, error) {
	prepared, err := m.register(t, policy)
	if err != nil {
		return Target{}, err
	}
	dir := filepath.Join(m.dir, prepared.Subdir.String())
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		m.log.Debug("creating directory", "dir", normalizePath(dir))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Target{}, fmt.Errorf("prepare %s: %w", prepared, err)
		}
	}
	return prepared, nil
}

// Claim records a target as owned by this session without collision
// handling. Used when reading files back so Close still lists them in the
// ignore file.
func (m *Mount) Claim(t Target) { m.touch(t) }

// OpenFile prepares the target and opens the file with the given flags.
// The caller owns the returned handle.
func (m *Mount) OpenFile(t Target, flag int, perm os.FileMode) (*os.File, Target, error) {
	prepared, err := m.Prepare(t, "")
	if err != nil {
		return nil, Target{}, err
	}
	path, err := prepared.Path()
	if err != nil {
		return nil, Target{}, err
	}
	f, err := os.OpenFile(filepath.Join(m.dir, path), flag, perm)
	if err != nil {
		return nil, Target{}, fmt.Errorf("open %s: %w", prepared, err)
	}
	return f, prepared, nil
}

// Untrack forgets a registered target so it can be written again without
// triggering the collision policy.
func (m *Mount) Untrack(t Target) {
	key := t.key()
	if _, ok := m.touchedSet[key]; !ok {
		return
	}
	delete(m.touchedSet, key)
	for i, candidate := range m.touched {
		if candidate.key() == key {
			m.touched = append(m.touched[:i], m.touched[i+1:]...)
			break
		}
	}
	m.removed = append(m.removed, t)
}

// Remove deletes the target's file and stops tracking it. Removing an empty
// directory target removes the directory.
func (m *Mount) Remove(t Target) error {
	m.Untrack(t)
	rel, err := t.Path()
	if err != nil {
		return err
	}
	path := filepath.Join(m.dir, rel)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", t, err)
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("remove %s: %w", t, err)
		}
		if len(entries) == 0 {
			return os.Remove(path)
		}
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", t, err)
	}
	return nil
}

// Close prunes empty directories below the mount and writes the ignore
// list. It does not invalidate the mount; a later write reopens the
// bracket.
func (m *Mount) Close() error {
	if err := pruneDirectories(m.dir, true); err != nil {
		return fmt.Errorf("close mount %q: %w", m.dir, err)
	}
	if !m.ignore {
		return nil
	}
	ignored := make([]string, 0, len(m.touched))
	for _, t := range m.touched {
		rel, err := t.Path()
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(m.dir, rel)); err == nil {
			ignored = append(ignored, filepath.ToSlash(rel))
		}
	}
	removed := make([]string, 0, len(m.removed))
	for _, t := range m.removed {
		if rel, err := t.Path(); err == nil {
			removed = append(removed, filepath.ToSlash(rel))
		}
	}
	if m.cluster {
		parent, name := filepath.Split(strings.TrimRight(m.dir, string(os.PathSeparator)))
		if len(ignored) == 0 {
			// Nothing alive inside the cluster; drop its directory
			// entry once the directory itself is gone.
			return writeIgnoreFile(parent, nil, []string{name})
		}
		return writeIgnoreFile(parent, []string{name}, nil)
	}
	return writeIgnoreFile(m.dir, ignored, removed)
}
