// Package registry keeps the handles presentation code holds across ticks
// and rebinds them against every new generation.
//
// Handles live in an arena of slots addressed by generational Refs. Groups
// map an ObjectID to the refs of every handle observing it; several handles
// for one object are normal.
package registry

import (
	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/fault"
	"github.com/criticalpoint/syncbridge/internal/generation"
	"github.com/criticalpoint/syncbridge/internal/id"
)

type group struct {
	refs []Ref
	seen bool // bound in at least one generation
	hit  bool // bound in the generation being reconciled
}

// Result summarizes one reconciliation.
type Result struct {
	Bound     int
	Unbound   int
	Misses    int
	Collected int
	Expired   []id.ObjectID
}

// Stats is a point-in-time view of the registry size.
type Stats struct {
	Groups  int `json:"groups"`
	Handles int `json:"handles"`
	Bound   int `json:"bound"`
}

// Registry is not safe for concurrent use; it is driven from the tick loop.
type Registry struct {
	handles slotArena
	groups  map[id.ObjectID]*group
	gc      []id.ObjectID
	log     *zap.Logger
}

func New(log *zap.Logger) *Registry {
	return &Registry{
		handles: newSlotArena(),
		groups:  make(map[id.ObjectID]*group, 256),
		gc:      make([]id.ObjectID, 0, 16),
		log:     log,
	}
}

// Register adds an unbound handle observing obj to the group for obj,
// creating the group if needed.
func (r *Registry) Register(obj id.ObjectID, class id.ClassTag) Ref {
	ref := r.handles.alloc(obj, class)

	g, ok := r.groups[obj]
	if !ok {
		g = &group{refs: make([]Ref, 0, 1)}
		r.groups[obj] = g
	}
	g.refs = append(g.refs, ref)
	return ref
}

// Release invalidates a handle. It stays unbound from now on and its slot is
// reclaimed by the next Reconcile.
func (r *Registry) Release(ref Ref) {
	s, ok := r.handles.get(ref)
	if !ok {
		return
	}
	s.unbind()
	s.objID = id.InvalidObjectID
}

// Reconcile rebinds every handle against gen. When it returns, each handle
// either points at the record for its object in gen or is unbound; nothing
// references an older generation. Groups with released handles are pruned
// first. Groups whose object was present before and is absent from gen
// belong to destroyed objects; their handles are invalidated and the groups
// are dropped in the same call.
func (r *Registry) Reconcile(gen *generation.Generation) (Result, error) {
	var res Result

	// reset
	for obj, g := range r.groups {
		g.hit = false
		marked := false
		for _, ref := range g.refs {
			s := r.handles.at(ref)
			s.unbind()
			if s.objID.IsInvalid() && !marked {
				r.gc = append(r.gc, obj)
				marked = true
			}
		}
	}

	// collect
	res.Collected += r.collect()

	// bind
	for _, st := range gen.States() {
		if st.IsNull() {
			continue
		}
		g, ok := r.groups[st.ObjectID]
		if !ok {
			res.Misses++
			continue
		}
		for _, ref := range g.refs {
			if s := r.handles.at(ref); s.class != st.Class {
				r.log.Error("class mismatch during reconcile",
					zap.Uint64("object_id", uint64(st.ObjectID)),
					zap.Stringer("handle_class", s.class),
					zap.Stringer("record_class", st.Class))
				return res, fault.Protocol("registry", "reconcile",
					"%s observed as %s but generation %d carries %s",
					st.ObjectID, s.class, gen.Seq(), st.Class)
			}
		}
		for _, ref := range g.refs {
			s := r.handles.at(ref)
			s.gen = gen
			s.state = st
			s.bound = true
		}
		g.hit = true
		g.seen = true
	}

	// expire
	for obj, g := range r.groups {
		if !g.seen || g.hit {
			continue
		}
		for _, ref := range g.refs {
			r.handles.at(ref).objID = id.InvalidObjectID
		}
		r.gc = append(r.gc, obj)
		res.Expired = append(res.Expired, obj)
	}
	res.Collected += r.collect()

	for _, g := range r.groups {
		for _, ref := range g.refs {
			if r.handles.at(ref).bound {
				res.Bound++
			} else {
				res.Unbound++
			}
		}
	}

	r.log.Debug("reconciled",
		zap.Uint64("generation", gen.Seq()),
		zap.Int("bound", res.Bound),
		zap.Int("unbound", res.Unbound),
		zap.Int("misses", res.Misses),
		zap.Int("collected", res.Collected),
		zap.Int("expired", len(res.Expired)))
	return res, nil
}

// collect rebuilds every group queued in r.gc, keeping only handles whose
// ObjectID is still valid, and drops groups left empty.
func (r *Registry) collect() int {
	n := 0
	for _, obj := range r.gc {
		g, ok := r.groups[obj]
		if !ok {
			continue
		}
		kept := g.refs[:0]
		for _, ref := range g.refs {
			if r.handles.at(ref).objID.IsValid() {
				kept = append(kept, ref)
				continue
			}
			r.handles.reclaim(ref)
			n++
		}
		if len(kept) == 0 {
			delete(r.groups, obj)
		} else {
			g.refs = kept
		}
	}
	r.gc = r.gc[:0]
	return n
}

// Unbind detaches every handle. It is used before the last generation of a
// session is released.
func (r *Registry) Unbind() {
	for _, g := range r.groups {
		for _, ref := range g.refs {
			r.handles.at(ref).unbind()
		}
	}
}

// Len is the number of ObjectIDs with at least one handle.
func (r *Registry) Len() int { return len(r.groups) }

// Contains reports whether obj has a group.
func (r *Registry) Contains(obj id.ObjectID) bool {
	_, ok := r.groups[obj]
	return ok
}

// GroupSize is the number of handles observing obj.
func (r *Registry) GroupSize(obj id.ObjectID) int {
	if g, ok := r.groups[obj]; ok {
		return len(g.refs)
	}
	return 0
}

func (r *Registry) Stats() Stats {
	st := Stats{Groups: len(r.groups), Handles: r.handles.live()}
	for _, g := range r.groups {
		for _, ref := range g.refs {
			if r.handles.at(ref).bound {
				st.Bound++
			}
		}
	}
	return st
}
