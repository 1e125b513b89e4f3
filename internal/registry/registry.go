package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/rzbill/relay/internal/protocol"
)

// ErrDuplicate is returned by Add when the connection already owns the id.
var ErrDuplicate = errors.New("registry: subscription id already active on connection")

// Owner receives messages produced for a subscription. Connections implement it.
type Owner interface {
	ID() string
	// Enqueue hands msg to the owner's ordered send path. It returns an error
	// once the owner is closing.
	Enqueue(msg protocol.Message) error
}

// Subscription is one active subscription. Fields are set at creation and
// never change afterwards.
type Subscription struct {
	// ID is the client-chosen operation id, unique only within its connection.
	ID           string
	ConnectionID string
	Route        string
	// Plan is the compiled query plan, opaque to the registry.
	Plan  any
	Owner Owner
}

type routeKey struct {
	conn string
	id   string
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byConn  map[string]map[string]*Subscription
	byRoute map[string]map[routeKey]*Subscription
	total   int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byConn:  make(map[string]map[string]*Subscription),
		byRoute: make(map[string]map[routeKey]*Subscription),
	}
}

// Add inserts s into both indexes.
func (r *Registry) Add(s *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.byConn[s.ConnectionID]
	if _, exists := bucket[s.ID]; exists {
		return ErrDuplicate
	}
	if bucket == nil {
		bucket = make(map[string]*Subscription)
		r.byConn[s.ConnectionID] = bucket
	}
	bucket[s.ID] = s
	routes := r.byRoute[s.Route]
	if routes == nil {
		routes = make(map[routeKey]*Subscription)
		r.byRoute[s.Route] = routes
	}
	routes[routeKey{conn: s.ConnectionID, id: s.ID}] = s
	r.total++
	return nil
}

// RemoveByConnectionAndID removes one subscription. It returns nil, false when
// no such subscription is active.
func (r *Registry) RemoveByConnectionAndID(connID, id string) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byConn[connID][id]
	if !ok {
		return nil, false
	}
	r.removeLocked(s)
	return s, true
}

// RemoveAllForConnection removes every subscription owned by connID and
// returns them. Calling it for a connection with nothing registered returns nil.
func (r *Registry) RemoveAllForConnection(connID string) []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.byConn[connID]
	if len(bucket) == 0 {
		delete(r.byConn, connID)
		return nil
	}
	out := make([]*Subscription, 0, len(bucket))
	for _, s := range bucket {
		out = append(out, s)
	}
	for _, s := range out {
		r.removeLocked(s)
	}
	return out
}

func (r *Registry) removeLocked(s *Subscription) {
	if bucket := r.byConn[s.ConnectionID]; bucket != nil {
		delete(bucket, s.ID)
		if len(bucket) == 0 {
			delete(r.byConn, s.ConnectionID)
		}
	}
	if routes := r.byRoute[s.Route]; routes != nil {
		delete(routes, routeKey{conn: s.ConnectionID, id: s.ID})
		if len(routes) == 0 {
			delete(r.byRoute, s.Route)
		}
	}
	r.total--
}

// LookupByRoute returns a snapshot of the subscriptions listening on route.
func (r *Registry) LookupByRoute(route string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routes := r.byRoute[route]
	if len(routes) == 0 {
		return nil
	}
	out := make([]*Subscription, 0, len(routes))
	for _, s := range routes {
		out = append(out, s)
	}
	return out
}

// ForConnection returns a snapshot of the subscriptions owned by connID,
// sorted by id.
func (r *Registry) ForConnection(connID string) []*Subscription {
	r.mu.RLock()
	bucket := r.byConn[connID]
	out := make([]*Subscription, 0, len(bucket))
	for _, s := range bucket {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CountForConnection returns how many subscriptions connID owns.
func (r *Registry) CountForConnection(connID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn[connID])
}

// Len returns the total number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Routes returns the number of subscriptions per route.
func (r *Registry) Routes() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.byRoute))
	for route, subs := range r.byRoute {
		out[route] = len(subs)
	}
	return out
}
