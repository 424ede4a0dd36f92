package chat

import (
	"sort"
	"sync"
)

// Registry is the set of live connection handles keyed by peer address.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
	}
}

// Add registers a handle. It fails if the address is already registered.
func (r *Registry) Add(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[h.address]; ok {
		return ErrDuplicateAddress
	}
	r.handles[h.address] = h
	return nil
}

// Remove unregisters h. It reports false if h was not registered.
func (r *Registry) Remove(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.handles[h.address]; !ok || cur != h {
		return false
	}
	delete(r.handles, h.address)
	return true
}

// RemoveByAddress unregisters and returns the handle registered for address.
func (r *Registry) RemoveByAddress(address string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[address]
	if ok {
		delete(r.handles, address)
	}
	return h, ok
}

// Get returns the handle registered for address.
func (r *Registry) Get(address string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[address]
	return h, ok
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// ForEach calls fn for every handle registered when ForEach was called.
// fn runs without the lock held, so it may add or remove handles.
func (r *Registry) ForEach(fn func(*Handle)) {
	for _, h := range r.snapshot() {
		fn(h)
	}
}

// Peers returns a view of every registered handle ordered by connect time.
func (r *Registry) Peers() []Peer {
	handles := r.snapshot()
	peers := make([]Peer, 0, len(handles))
	for _, h := range handles {
		peers = append(peers, h.peer())
	}
	sort.Slice(peers, func(i, j int) bool {
		if peers[i].ConnectedAt.Equal(peers[j].ConnectedAt) {
			return peers[i].Address < peers[j].Address
		}
		return peers[i].ConnectedAt.Before(peers[j].ConnectedAt)
	})
	return peers
}

func (r *Registry) snapshot() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	return handles
}
