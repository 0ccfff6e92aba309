package id

import (
	"fmt"
	"math"
)

// ObjectID is the stable identity of a simulation-owned object. The engine
// never reuses an ObjectID within a session. All bits set means absent.
type ObjectID uint64

// InvalidObjectID is the sentinel for "no object".
const InvalidObjectID ObjectID = math.MaxUint64

// Any value at or above the sentinel counts as invalid.
func (o ObjectID) IsValid() bool   { return o < InvalidObjectID }
func (o ObjectID) IsInvalid() bool { return o >= InvalidObjectID }

func (o ObjectID) String() string {
	if o.IsInvalid() {
		return "ObjectID(invalid)"
	}
	return fmt.Sprintf("ObjectID(%d)", uint64(o))
}

// Lifecycle is the per-state creation/destruction indicator written by the
// engine into every state record header.
type Lifecycle uint8

const (
	LifecycleCreated Lifecycle = iota
	LifecycleRunning
	LifecycleDestroyed
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleCreated:
		return "Created"
	case LifecycleRunning:
		return "Running"
	case LifecycleDestroyed:
		return "Destroyed"
	}
	return fmt.Sprintf("Lifecycle(%d)", uint8(l))
}
