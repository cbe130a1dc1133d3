package repo

// Tracked couples an object to its saved file: the content loads on first
// access and Close writes it back. The usual shape is
//
//	t := session.Track("results", repo.WithDefaultFactory(newResults))
//	defer t.Close()
//	v, err := t.Content()
type Tracked struct {
	s       *Session
	key     string
	opts    []Option
	content any
	loaded  bool
}

// Track returns a tracked handle for key. Nothing is read until the content
// is first accessed.
func (s *Session) Track(key string, opts ...Option) *Tracked {
	return &Tracked{s: s, key: key, opts: opts}
}

// Key returns the tracked key.
func (t *Tracked) Key() string { return t.key }

// Content returns the tracked object, loading it on first access.
func (t *Tracked) Content() (any, error) {
	if !t.loaded {
		return t.Load()
	}
	return t.content, nil
}

// SetContent replaces the tracked object; the next Save or Close persists
// it.
func (t *Tracked) SetContent(v any) {
	t.content = v
	t.loaded = true
}

// Load (re)reads the tracked object from its file, or produces the
// configured default when the file does not exist.
func (t *Tracked) Load() (any, error) {
	v, err := t.s.Load(t.key, t.opts...)
	if err != nil {
		return nil, err
	}
	t.content = v
	t.loaded = true
	return v, nil
}

// Save writes the tracked object back to its file.
func (t *Tracked) Save() error {
	if !t.loaded {
		return nil
	}
	return t.s.Save(t.key, t.content, t.opts...)
}

// Close persists the tracked object. It implements io.Closer so a handle
// can be deferred.
func (t *Tracked) Close() error {
	return t.Save()
}
