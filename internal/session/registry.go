// Package session implements the per-connection session and
// process-wide handler registry described in spec §4.9/§5: a small
// stable integer handler id per client connection, and four typed
// cursor maps per session for paginated streaming reads.
package session

import (
	"sync"

	"github.com/dialogtable/dialogtable/internal/errors"
)

// Registry issues small, stable handler ids to client connections and
// reclaims them on deregistration, mirroring the original's
// thread_manager::register_thread/deregister_thread pairing.
type Registry struct {
	mu     sync.Mutex
	free   []int64
	next   int64
	active map[int64]bool
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[int64]bool)}
}

// RegisterHandler assigns and returns a new handler id, reusing the
// most recently reclaimed id before minting a new one.
func (r *Registry) RegisterHandler() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id int64
	if n := len(r.free); n > 0 {
		id = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		id = r.next
		r.next++
	}
	r.active[id] = true
	return id
}

// DeregisterHandler releases id back to the free pool.
func (r *Registry) DeregisterHandler(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active[id] {
		return errors.Management("unknown handler id %d", id)
	}
	delete(r.active, id)
	r.free = append(r.free, id)
	return nil
}

// IsActive reports whether id is currently registered.
func (r *Registry) IsActive(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[id]
}
