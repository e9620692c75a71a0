package session

import "time"

// Op is a single field write or removal.
type Op struct {
	Field  string
	Value  any
	TTL    time.Duration
	Remove bool
}

// Patch is the ordered set of session mutations a dialogue turn produced.
type Patch []Op

// Set appends a field write with the given TTL.
func (p Patch) Set(field string, value any, ttl time.Duration) Patch {
	return append(p, Op{Field: field, Value: value, TTL: ttl})
}

// Remove appends a field removal.
func (p Patch) Remove(field string) Patch {
	return append(p, Op{Field: field, Remove: true})
}
