package cairn

import (
	"github.com/wbakker/cairn/model"
	"github.com/wbakker/cairn/persist"
	"github.com/wbakker/cairn/repo"
)

// NewRegistry builds a registry with the built-in codecs and the container
// codecs from the model package installed. Callers register their own types
// on top with persist.RegisterSerializableFor and persist.RegisterStorableFor.
func NewRegistry() *persist.Registry {
	r := persist.NewRegistry()
	model.Register(r)
	return r
}

// New opens a session over a freshly built registry.
func New(opts ...repo.SessionOption) *repo.Session {
	return repo.New(NewRegistry(), opts...)
}

// Open opens a session over an existing registry, so types registered by the
// caller stay visible to everything loaded through it.
func Open(reg *persist.Registry, opts ...repo.SessionOption) *repo.Session {
	return repo.New(reg, opts...)
}

// Uninterrupted runs fn with interrupt delivery deferred until it returns.
// See repo.Uninterrupted.
func Uninterrupted(fn func() error) error {
	return repo.Uninterrupted(fn)
}
