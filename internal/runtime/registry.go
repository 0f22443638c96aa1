package runtime

// Registry binds task kinds to their Handler. A single Registry is shared
// by every worker in a pool.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register binds kind to handler. Registering the same kind twice replaces
// the previous binding, which is only ever intentional in tests.
func (r *Registry) Register(kind string, handler Handler) {
	r.handlers[kind] = handler
}

// Lookup returns the handler bound to kind, or ok=false if none is registered.
func (r *Registry) Lookup(kind string) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}
