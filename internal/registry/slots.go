package registry

import (
	"github.com/criticalpoint/syncbridge/internal/generation"
	"github.com/criticalpoint/syncbridge/internal/id"
)

// Ref addresses one handle slot: the slot index in the low 32 bits and the
// slot's reuse count in the high 32. A Ref stops resolving once its slot is
// reclaimed.
type Ref uint64

func (r Ref) Index() uint32      { return uint32(r) }
func (r Ref) Generation() uint32 { return uint32(r >> 32) }

// slot is one handle: the object it observes and, between a Reconcile and
// the release of that generation, the record it is bound to.
type slot struct {
	objID id.ObjectID
	class id.ClassTag
	gen   *generation.Generation
	state generation.State
	bound bool

	reuse uint32
	live  bool
}

func (s *slot) unbind() {
	s.gen = nil
	s.state = generation.State{}
	s.bound = false
}

// slotArena owns every handle of a registry. Reclaimed slots go on a free
// list and come back with their reuse count bumped.
type slotArena struct {
	slots []slot
	free  []uint32
}

func newSlotArena() slotArena {
	return slotArena{
		slots: make([]slot, 0, 256),
		free:  make([]uint32, 0, 64),
	}
}

// alloc hands out an unbound slot observing obj.
func (a *slotArena) alloc(obj id.ObjectID, class id.ClassTag) Ref {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}
	s := &a.slots[idx]
	*s = slot{objID: obj, class: class, reuse: s.reuse, live: true}
	return Ref(uint64(s.reuse)<<32 | uint64(idx))
}

// get resolves ref, failing for refs whose slot was reclaimed since.
func (a *slotArena) get(ref Ref) (*slot, bool) {
	idx := ref.Index()
	if int(idx) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[idx]
	if !s.live || s.reuse != ref.Generation() {
		return nil, false
	}
	return s, true
}

// at resolves a ref held by a group. Groups only hold live refs.
func (a *slotArena) at(ref Ref) *slot { return &a.slots[ref.Index()] }

// reclaim frees the slot behind ref. Stale refs are ignored.
func (a *slotArena) reclaim(ref Ref) {
	s, ok := a.get(ref)
	if !ok {
		return
	}
	*s = slot{objID: id.InvalidObjectID, reuse: s.reuse + 1}
	a.free = append(a.free, ref.Index())
}

func (a *slotArena) live() int { return len(a.slots) - len(a.free) }
