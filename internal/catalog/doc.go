// Package catalog persists which schemas a data directory has served, with
// their mount route, declared fields and first/last open times.
//
// Example:
//
//	meta, _ := catalog.Ensure(db, "default", "/graphql", nil, time.Now())
//	all, _ := catalog.List(db)
package catalog
