package event

import "github.com/criticalpoint/syncbridge/internal/id"

// Tick events, delivered at the end of every Advance.

type Advanced struct {
	Seq          uint64
	Materialized int
	Bound        int
	Unbound      int
	Misses       int
	Collected    int
	Released     bool // a previous generation was freed
}

// Materialized reports the representations factories produced in a tick.
type Materialized struct {
	Seq   uint64
	Props int
	Count int
}

type Expired struct {
	Seq      uint64
	ObjectID id.ObjectID
}
