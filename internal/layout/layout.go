// Package layout describes the byte layout of the records the native engine
// publishes each tick and decodes them through bounds-checked accessors.
//
// Every exported record starts with a common header:
//
//	ObjectID  u64
//	ClassTag  u16
//	Lifecycle u8      (state records only)
//	vtable    pointer
//	padding   [8]byte
//	payload   ...
//
// Sequences are (ptr, cap, len) triples of pointer width, and a generation
// block is the props triple followed by the states triple. Offsets follow C
// struct rules and are computed once per pointer width.
package layout

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"github.com/criticalpoint/syncbridge/internal/fault"
)

// ErrShortBuffer is returned when a byte range is too small for the record
// being decoded or encoded.
var ErrShortBuffer = errors.New("layout: short buffer")

const (
	objectIDSize  = 8
	classTagSize  = 2
	lifecycleSize = 1
	paddingSize   = 8
	recordAlign   = 8
)

// Layout holds the computed offsets for one pointer width.
type Layout struct {
	PointerSize int
	Order       binary.ByteOrder

	ObjectIDOffset  int
	ClassTagOffset  int
	LifecycleOffset int

	PropVTableOffset  int
	StateVTableOffset int

	PropHeaderSize  int
	StateHeaderSize int

	ArraySize int
	PoolSize  int
}

// HostPointerSize is the pointer width of the running process.
const HostPointerSize = int(unsafe.Sizeof(uintptr(0)))

// Host returns the layout for the running process.
func Host() (Layout, error) {
	return New(HostPointerSize)
}

// New computes the layout for a pointer width of 4 or 8 bytes. Zero selects
// the host width. The result is validated before it is returned.
func New(pointerSize int) (Layout, error) {
	if pointerSize == 0 {
		pointerSize = HostPointerSize
	}
	if pointerSize != 4 && pointerSize != 8 {
		return Layout{}, fault.Configuration("layout", "new", "unsupported pointer size %d", pointerSize)
	}

	l := Layout{
		PointerSize:    pointerSize,
		Order:          binary.LittleEndian,
		ObjectIDOffset: 0,
		ClassTagOffset: objectIDSize,
	}
	l.LifecycleOffset = l.ClassTagOffset + classTagSize

	l.PropVTableOffset = align(l.ClassTagOffset+classTagSize, pointerSize)
	l.PropHeaderSize = align(l.PropVTableOffset+pointerSize+paddingSize, recordAlign)

	l.StateVTableOffset = align(l.LifecycleOffset+lifecycleSize, pointerSize)
	l.StateHeaderSize = align(l.StateVTableOffset+pointerSize+paddingSize, recordAlign)

	l.ArraySize = 3 * pointerSize
	l.PoolSize = 2 * l.ArraySize

	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate checks that no header field overlaps another and that headers
// keep payloads aligned.
func (l Layout) Validate() error {
	switch {
	case l.PointerSize != 4 && l.PointerSize != 8:
		return fault.Configuration("layout", "validate", "unsupported pointer size %d", l.PointerSize)
	case l.Order == nil:
		return fault.Configuration("layout", "validate", "byte order not set")
	case l.ObjectIDOffset != 0:
		return fault.Configuration("layout", "validate", "object id must lead the header")
	case l.ClassTagOffset < l.ObjectIDOffset+objectIDSize:
		return fault.Configuration("layout", "validate", "class tag overlaps object id")
	case l.LifecycleOffset < l.ClassTagOffset+classTagSize:
		return fault.Configuration("layout", "validate", "lifecycle overlaps class tag")
	case l.PropVTableOffset%l.PointerSize != 0 || l.StateVTableOffset%l.PointerSize != 0:
		return fault.Configuration("layout", "validate", "vtable slot misaligned")
	case l.StateVTableOffset < l.LifecycleOffset+lifecycleSize:
		return fault.Configuration("layout", "validate", "vtable overlaps lifecycle")
	case l.PropHeaderSize%recordAlign != 0 || l.StateHeaderSize%recordAlign != 0:
		return fault.Configuration("layout", "validate", "header size %d/%d breaks payload alignment",
			l.PropHeaderSize, l.StateHeaderSize)
	case l.PropHeaderSize < l.PropVTableOffset+l.PointerSize+paddingSize:
		return fault.Configuration("layout", "validate", "prop header truncated")
	case l.StateHeaderSize < l.StateVTableOffset+l.PointerSize+paddingSize:
		return fault.Configuration("layout", "validate", "state header truncated")
	case l.ArraySize != 3*l.PointerSize || l.PoolSize != 2*l.ArraySize:
		return fault.Configuration("layout", "validate", "sequence triple size mismatch")
	}
	return nil
}

func align(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}
