// Package registry tracks live subscriptions under two indexes: by owning
// connection and by field route.
//
// Both indexes change together under one lock, so a route lookup never sees a
// subscription that its connection bucket has already dropped. LookupByRoute
// returns a copied snapshot; fan-out iterates the copy without holding the lock.
//
// Usage
//
//	r := registry.New()
//	err := r.Add(&registry.Subscription{ID: "1", ConnectionID: c.ID(), Route: "fan.speedChanged", Plan: plan, Owner: c})
//	for _, s := range r.LookupByRoute("fan.speedChanged") { ... }
//	removed := r.RemoveAllForConnection(c.ID())
package registry
