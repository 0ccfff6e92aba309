package registry

import (
	"fmt"

	"github.com/criticalpoint/syncbridge/internal/fault"
	"github.com/criticalpoint/syncbridge/internal/id"
	"github.com/criticalpoint/syncbridge/internal/shape"
)

// Handle is a typed observer of one object's state across generations.
// It is only readable between a Reconcile that bound it and the release of
// that generation.
type Handle[S shape.State] struct {
	reg   *Registry
	ref   Ref
	class id.ClassTag
	size  int
}

// NewHandle registers an unbound handle for obj. The state shape S is
// validated the first time it is used.
func NewHandle[S shape.State](r *Registry, obj id.ObjectID) (*Handle[S], error) {
	info, err := shape.StateOf[S]()
	if err != nil {
		return nil, err
	}
	return &Handle[S]{
		reg:   r,
		ref:   r.Register(obj, info.Class),
		class: info.Class,
		size:  info.Size,
	}, nil
}

func (h *Handle[S]) Ref() Ref              { return h.ref }
func (h *Handle[S]) ClassTag() id.ClassTag { return h.class }

// ObjectID is InvalidObjectID once the handle is released or its object
// has expired.
func (h *Handle[S]) ObjectID() id.ObjectID {
	s, ok := h.reg.handles.get(h.ref)
	if !ok {
		return id.InvalidObjectID
	}
	return s.objID
}

func (h *Handle[S]) IsBound() bool {
	s, ok := h.reg.handles.get(h.ref)
	return ok && s.bound && s.gen != nil && !s.gen.Released()
}

func (h *Handle[S]) Lifecycle() (id.Lifecycle, error) {
	s, err := h.bound("lifecycle")
	if err != nil {
		return 0, err
	}
	return s.state.Lifecycle, nil
}

// Payload returns the raw payload bytes of the bound record. The slice
// aliases engine memory and is only valid until the generation is released.
func (h *Handle[S]) Payload() ([]byte, error) {
	s, err := h.bound("payload")
	if err != nil {
		return nil, err
	}
	return s.gen.StatePayload(s.state, h.size)
}

// State decodes the bound record's payload.
func (h *Handle[S]) State() (S, error) {
	var zero S
	s, err := h.bound("state")
	if err != nil {
		return zero, err
	}
	b, err := s.gen.StatePayload(s.state, h.size)
	if err != nil {
		return zero, err
	}
	v, err := shape.Decode[S](b, s.gen.Layout().Order)
	if err != nil {
		return zero, fault.InvalidAccess("registry", "state", "%s: %v", s.objID, err)
	}
	return v, nil
}

// Release invalidates the handle. Releasing twice is a no-op.
func (h *Handle[S]) Release() {
	h.reg.Release(h.ref)
}

func (h *Handle[S]) String() string {
	return fmt.Sprintf("Handle(%s, %s, bound=%t)", h.ObjectID(), h.class, h.IsBound())
}

func (h *Handle[S]) bound(op string) (*slot, error) {
	s, ok := h.reg.handles.get(h.ref)
	if !ok || s.objID.IsInvalid() {
		return nil, fault.InvalidAccess("registry", op, "handle released")
	}
	if !s.bound || s.gen == nil {
		return nil, fault.InvalidAccess("registry", op, "%s not bound to a generation", s.objID)
	}
	if s.gen.Released() {
		return nil, fault.InvalidAccess("registry", op, "%s bound to released generation %d", s.objID, s.gen.Seq())
	}
	return s, nil
}
