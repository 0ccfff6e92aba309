package generation

import (
	"errors"

	"github.com/criticalpoint/syncbridge/internal/id"
	"github.com/criticalpoint/syncbridge/internal/layout"
	"github.com/criticalpoint/syncbridge/internal/memory"
	"github.com/criticalpoint/syncbridge/internal/shape"
)

// Block is a generation laid out in an arena together with every block it
// owns.
type Block struct {
	Addr  uintptr
	parts []uintptr
}

// Free returns every part of the block to the arena.
func (b Block) Free(a *memory.Arena) error {
	var errs []error
	for _, p := range b.parts {
		if err := a.Free(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Builder lays out one generation block in an arena the way the engine does.
type Builder struct {
	arena  *memory.Arena
	layout layout.Layout
	parts  []uintptr
	props  []uintptr
	states []uintptr
}

func NewBuilder(a *memory.Arena, l layout.Layout) *Builder {
	return &Builder{arena: a, layout: l}
}

// AddProp appends a descriptor with a raw payload.
func (b *Builder) AddProp(obj id.ObjectID, class id.ClassTag, payload []byte) uintptr {
	addr, buf := b.arena.Alloc(b.layout.PropHeaderSize + len(payload))
	// buffer sized above, cannot be short
	_ = b.layout.PutPropHeader(buf, layout.PropHeader{ObjectID: obj, Class: class})
	copy(buf[b.layout.PropHeaderSize:], payload)
	b.parts = append(b.parts, addr)
	b.props = append(b.props, addr)
	return addr
}

// AddState appends a state record with a raw payload.
func (b *Builder) AddState(obj id.ObjectID, class id.ClassTag, lc id.Lifecycle, payload []byte) uintptr {
	addr, buf := b.arena.Alloc(b.layout.StateHeaderSize + len(payload))
	_ = b.layout.PutStateHeader(buf, layout.StateHeader{ObjectID: obj, Class: class, Lifecycle: lc})
	copy(buf[b.layout.StateHeaderSize:], payload)
	b.parts = append(b.parts, addr)
	b.states = append(b.states, addr)
	return addr
}

// AddNullProp and AddNullState append empty slots.
func (b *Builder) AddNullProp()  { b.props = append(b.props, 0) }
func (b *Builder) AddNullState() { b.states = append(b.states, 0) }

// Build writes the pointer tables and the pool header and returns the block.
// The builder is reset for the next generation.
func (b *Builder) Build() (Block, error) {
	propsArr, err := b.table(b.props)
	if err != nil {
		return Block{}, err
	}
	statesArr, err := b.table(b.states)
	if err != nil {
		return Block{}, err
	}

	addr, buf := b.arena.Alloc(b.layout.PoolSize)
	if err := b.layout.PutPool(buf, layout.Pool{Props: propsArr, States: statesArr}); err != nil {
		return Block{}, err
	}
	b.parts = append(b.parts, addr)

	blk := Block{Addr: addr, parts: b.parts}
	b.parts, b.props, b.states = nil, nil, nil
	return blk, nil
}

func (b *Builder) table(ptrs []uintptr) (layout.Array, error) {
	if len(ptrs) == 0 {
		return layout.Array{}, nil
	}
	// reserve spare capacity like a growing vector would
	capacity := len(ptrs) + len(ptrs)/2
	addr, buf := b.arena.Alloc(capacity * b.layout.PointerSize)
	if err := b.layout.PutPointers(buf, ptrs); err != nil {
		return layout.Array{}, err
	}
	b.parts = append(b.parts, addr)
	return layout.Array{Ptr: addr, Cap: uint64(capacity), Len: uint64(len(ptrs))}, nil
}

// AddPropShape appends a descriptor whose payload is encoded from p.
func AddPropShape[P shape.Prop](b *Builder, obj id.ObjectID, p P) (uintptr, error) {
	info, err := shape.PropOf[P]()
	if err != nil {
		return 0, err
	}
	payload := make([]byte, info.Size)
	if err := shape.Encode(payload, b.layout.Order, p); err != nil {
		return 0, err
	}
	return b.AddProp(obj, info.Class, payload), nil
}

// AddStateShape appends a state record whose payload is encoded from s.
func AddStateShape[S shape.State](b *Builder, obj id.ObjectID, lc id.Lifecycle, s S) (uintptr, error) {
	info, err := shape.StateOf[S]()
	if err != nil {
		return 0, err
	}
	payload := make([]byte, info.Size)
	if err := shape.Encode(payload, b.layout.Order, s); err != nil {
		return 0, err
	}
	return b.AddState(obj, info.Class, lc, payload), nil
}
