package layout

import (
	"fmt"

	"github.com/criticalpoint/syncbridge/internal/id"
)

// PropHeader is the decoded header of a newly created object descriptor.
type PropHeader struct {
	ObjectID id.ObjectID
	Class    id.ClassTag
}

// StateHeader is the decoded header of a per-tick state record.
type StateHeader struct {
	ObjectID  id.ObjectID
	Class     id.ClassTag
	Lifecycle id.Lifecycle
}

// Array is a (ptr, cap, len) sequence descriptor.
type Array struct {
	Ptr uintptr
	Cap uint64
	Len uint64
}

// Pool is the top-level generation block.
type Pool struct {
	Props  Array
	States Array
}

// PayloadOffset is where the shape-specific part of a record begins.
func (l Layout) PayloadOffset(state bool) int {
	if state {
		return l.StateHeaderSize
	}
	return l.PropHeaderSize
}

func (l Layout) DecodePropHeader(b []byte) (PropHeader, error) {
	if err := need(b, l.PropHeaderSize, "prop header"); err != nil {
		return PropHeader{}, err
	}
	return PropHeader{
		ObjectID: id.ObjectID(l.Order.Uint64(b[l.ObjectIDOffset:])),
		Class:    id.ClassTag(l.Order.Uint16(b[l.ClassTagOffset:])),
	}, nil
}

func (l Layout) DecodeStateHeader(b []byte) (StateHeader, error) {
	if err := need(b, l.StateHeaderSize, "state header"); err != nil {
		return StateHeader{}, err
	}
	return StateHeader{
		ObjectID:  id.ObjectID(l.Order.Uint64(b[l.ObjectIDOffset:])),
		Class:     id.ClassTag(l.Order.Uint16(b[l.ClassTagOffset:])),
		Lifecycle: id.Lifecycle(b[l.LifecycleOffset]),
	}, nil
}

func (l Layout) DecodeArray(b []byte) (Array, error) {
	if err := need(b, l.ArraySize, "array"); err != nil {
		return Array{}, err
	}
	return Array{
		Ptr: uintptr(l.word(b, 0)),
		Cap: l.word(b, l.PointerSize),
		Len: l.word(b, 2*l.PointerSize),
	}, nil
}

func (l Layout) DecodePool(b []byte) (Pool, error) {
	if err := need(b, l.PoolSize, "pool"); err != nil {
		return Pool{}, err
	}
	props, err := l.DecodeArray(b)
	if err != nil {
		return Pool{}, err
	}
	states, err := l.DecodeArray(b[l.ArraySize:])
	if err != nil {
		return Pool{}, err
	}
	if props.Len > props.Cap || states.Len > states.Cap {
		return Pool{}, fmt.Errorf("pool: len exceeds cap (props %d/%d, states %d/%d): %w",
			props.Len, props.Cap, states.Len, states.Cap, ErrShortBuffer)
	}
	return Pool{Props: props, States: states}, nil
}

// DecodePointers reads n consecutive pointer-width addresses.
func (l Layout) DecodePointers(b []byte, n int) ([]uintptr, error) {
	if n < 0 || n > len(b)/l.PointerSize {
		return nil, fmt.Errorf("pointer table: have %d bytes, need %d pointers: %w", len(b), n, ErrShortBuffer)
	}
	out := make([]uintptr, n)
	for i := range out {
		out[i] = uintptr(l.word(b, i*l.PointerSize))
	}
	return out, nil
}

func (l Layout) PutPropHeader(b []byte, h PropHeader) error {
	if err := need(b, l.PropHeaderSize, "prop header"); err != nil {
		return err
	}
	clear(b[:l.PropHeaderSize])
	l.Order.PutUint64(b[l.ObjectIDOffset:], uint64(h.ObjectID))
	l.Order.PutUint16(b[l.ClassTagOffset:], uint16(h.Class))
	return nil
}

func (l Layout) PutStateHeader(b []byte, h StateHeader) error {
	if err := need(b, l.StateHeaderSize, "state header"); err != nil {
		return err
	}
	clear(b[:l.StateHeaderSize])
	l.Order.PutUint64(b[l.ObjectIDOffset:], uint64(h.ObjectID))
	l.Order.PutUint16(b[l.ClassTagOffset:], uint16(h.Class))
	b[l.LifecycleOffset] = byte(h.Lifecycle)
	return nil
}

func (l Layout) PutArray(b []byte, a Array) error {
	if err := need(b, l.ArraySize, "array"); err != nil {
		return err
	}
	l.putWord(b, 0, uint64(a.Ptr))
	l.putWord(b, l.PointerSize, a.Cap)
	l.putWord(b, 2*l.PointerSize, a.Len)
	return nil
}

func (l Layout) PutPool(b []byte, p Pool) error {
	if err := need(b, l.PoolSize, "pool"); err != nil {
		return err
	}
	if err := l.PutArray(b, p.Props); err != nil {
		return err
	}
	return l.PutArray(b[l.ArraySize:], p.States)
}

func (l Layout) PutPointers(b []byte, ptrs []uintptr) error {
	if err := need(b, len(ptrs)*l.PointerSize, "pointer table"); err != nil {
		return err
	}
	for i, p := range ptrs {
		l.putWord(b, i*l.PointerSize, uint64(p))
	}
	return nil
}

func (l Layout) word(b []byte, off int) uint64 {
	if l.PointerSize == 4 {
		return uint64(l.Order.Uint32(b[off:]))
	}
	return l.Order.Uint64(b[off:])
}

func (l Layout) putWord(b []byte, off int, v uint64) {
	if l.PointerSize == 4 {
		l.Order.PutUint32(b[off:], uint32(v))
		return
	}
	l.Order.PutUint64(b[off:], v)
}

func need(b []byte, n int, what string) error {
	if len(b) < n {
		return fmt.Errorf("%s: have %d bytes, need %d: %w", what, len(b), n, ErrShortBuffer)
	}
	return nil
}
