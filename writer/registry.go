package writer

import (
	"github.com/launix-de/NonLockingReadMap"
)

// sessionInfo is a read-mostly snapshot of one writer session's identity
// and state, as last passed to Registry.Publish.
type sessionInfo struct {
	id    int
	state State
}

func (s sessionInfo) GetKey() int      { return s.id }
func (s sessionInfo) ComputeSize() uint { return 16 }

// Registry tracks writer sessions for introspection. Writes are rare and
// reads through States never block — exactly the access pattern
// NonLockingReadMap is built for, so the registry is a thin wrapper around
// it rather than a mutex-guarded map. geyserhost.Host publishes each
// session once, as Disconnected, when it starts and removes it when it
// stops; Session does not publish its own state transitions here.
type Registry struct {
	m NonLockingReadMap.NonLockingReadMap[sessionInfo, int]
}

// NewRegistry builds an empty session registry.
func NewRegistry() *Registry {
	return &Registry{m: NonLockingReadMap.New[sessionInfo, int]()}
}

// Publish records session's current state, replacing any prior entry for
// the same ID.
func (r *Registry) Publish(id int, state State) {
	r.m.Set(&sessionInfo{id: id, state: state})
}

// Remove drops a session from the registry, e.g. on final shutdown.
func (r *Registry) Remove(id int) {
	r.m.Remove(id)
}

// States returns a snapshot of every tracked session's current state,
// keyed by session ID.
func (r *Registry) States() map[int]State {
	out := make(map[int]State)
	for _, s := range r.m.GetAll() {
		out[s.id] = s.state
	}
	return out
}
