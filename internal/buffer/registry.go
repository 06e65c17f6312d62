package buffer

// Registry maps normalised targets to buffers. At most one buffer
// exists per key. It is not safe for concurrent use; the session
// touches it from its own goroutine only.
type Registry struct {
	factory Factory
	owner   Owner
	byKey   map[string]Buffer

	// Added and Removed are called after the registry changes.
	Added   func(Buffer)
	Removed func(Buffer)
}

// NewRegistry returns an empty registry building buffers with factory,
// or with New when factory is nil.
func NewRegistry(factory Factory, owner Owner) *Registry {
	if factory == nil {
		factory = New
	}
	return &Registry{factory: factory, owner: owner, byKey: make(map[string]Buffer)}
}

// Create builds a buffer through the factory without registering it.
func (r *Registry) Create(pattern string) Buffer {
	return r.factory(pattern, r.owner)
}

// Add returns the buffer for target, creating and announcing it on
// first use.
func (r *Registry) Add(target string) Buffer {
	key := Key(target)
	if b, ok := r.byKey[key]; ok {
		return b
	}
	b := r.factory(target, r.owner)
	r.byKey[key] = b
	if r.Added != nil {
		r.Added(b)
	}
	return b
}

// Remove unregisters b if it is the buffer currently stored under its
// key. It reports whether anything was removed.
func (r *Registry) Remove(b Buffer) bool {
	if b == nil {
		return false
	}
	key := Key(b.Pattern())
	if cur, ok := r.byKey[key]; !ok || cur != b {
		return false
	}
	delete(r.byKey, key)
	if r.Removed != nil {
		r.Removed(b)
	}
	return true
}

// Lookup returns the buffer for target, if any.
func (r *Registry) Lookup(target string) (Buffer, bool) {
	b, ok := r.byKey[Key(target)]
	return b, ok
}

// Len returns the number of registered buffers.
func (r *Registry) Len() int { return len(r.byKey) }

// Buffers returns the registered buffers in no particular order.
func (r *Registry) Buffers() []Buffer {
	out := make([]Buffer, 0, len(r.byKey))
	for _, b := range r.byKey {
		out = append(out, b)
	}
	return out
}
