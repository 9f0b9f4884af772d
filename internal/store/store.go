// Package store is the persistence boundary: typed save/load/list/delete
// operations per entity over Postgres. Engines depend on narrow
// consumer-side interfaces that *Postgres satisfies.
package store

import "errors"

// ErrNotFound is returned whenever a referenced entity id is absent.
var ErrNotFound = errors.New("not found")
