// Package generation decodes the snapshot the engine publishes each tick.
//
// A Generation borrows the engine's memory. Its headers are decoded eagerly,
// payloads are read on demand, and once Release is called every payload read
// through it fails.
package generation

import (
	"math"

	"github.com/criticalpoint/syncbridge/internal/fault"
	"github.com/criticalpoint/syncbridge/internal/layout"
	"github.com/criticalpoint/syncbridge/internal/memory"
)

// Prop is one entry of the new-descriptor sequence. A zero Addr is a null
// slot and carries no header.
type Prop struct {
	Addr uintptr
	layout.PropHeader
}

func (p Prop) IsNull() bool { return p.Addr == 0 }

// State is one entry of the state sequence.
type State struct {
	Addr uintptr
	layout.StateHeader
}

func (s State) IsNull() bool { return s.Addr == 0 }

type Generation struct {
	seq      uint64
	addr     uintptr
	space    memory.Space
	layout   layout.Layout
	props    []Prop
	states   []State
	released bool
}

// Decode reads the generation block at addr.
func Decode(space memory.Space, l layout.Layout, addr uintptr, seq uint64) (*Generation, error) {
	if addr == 0 {
		return nil, fault.Resource("generation", "decode", "null generation block")
	}
	raw, err := space.Bytes(addr, l.PoolSize)
	if err != nil {
		return nil, fault.Resource("generation", "decode", "pool header at 0x%x: %v", addr, err)
	}
	pool, err := l.DecodePool(raw)
	if err != nil {
		return nil, fault.Resource("generation", "decode", "pool header at 0x%x: %v", addr, err)
	}

	g := &Generation{seq: seq, addr: addr, space: space, layout: l}

	propPtrs, err := g.pointers(pool.Props, "props")
	if err != nil {
		return nil, err
	}
	g.props = make([]Prop, len(propPtrs))
	for i, p := range propPtrs {
		if p == 0 {
			continue
		}
		hdr, err := g.header(p, l.PropHeaderSize)
		if err != nil {
			return nil, err
		}
		ph, err := l.DecodePropHeader(hdr)
		if err != nil {
			return nil, fault.Resource("generation", "decode", "prop %d: %v", i, err)
		}
		g.props[i] = Prop{Addr: p, PropHeader: ph}
	}

	statePtrs, err := g.pointers(pool.States, "states")
	if err != nil {
		return nil, err
	}
	g.states = make([]State, len(statePtrs))
	for i, p := range statePtrs {
		if p == 0 {
			continue
		}
		hdr, err := g.header(p, l.StateHeaderSize)
		if err != nil {
			return nil, err
		}
		sh, err := l.DecodeStateHeader(hdr)
		if err != nil {
			return nil, fault.Resource("generation", "decode", "state %d: %v", i, err)
		}
		g.states[i] = State{Addr: p, StateHeader: sh}
	}
	return g, nil
}

func (g *Generation) pointers(a layout.Array, what string) ([]uintptr, error) {
	if a.Len == 0 {
		return nil, nil
	}
	if a.Len > uint64(math.MaxInt/g.layout.PointerSize) {
		return nil, fault.Resource("generation", "decode", "%s table at 0x%x: length %d out of range", what, a.Ptr, a.Len)
	}
	raw, err := g.space.Bytes(a.Ptr, int(a.Len)*g.layout.PointerSize)
	if err != nil {
		return nil, fault.Resource("generation", "decode", "%s table at 0x%x: %v", what, a.Ptr, err)
	}
	ptrs, err := g.layout.DecodePointers(raw, int(a.Len))
	if err != nil {
		return nil, fault.Resource("generation", "decode", "%s table: %v", what, err)
	}
	return ptrs, nil
}

func (g *Generation) header(addr uintptr, n int) ([]byte, error) {
	b, err := g.space.Bytes(addr, n)
	if err != nil {
		return nil, fault.Resource("generation", "decode", "record at 0x%x: %v", addr, err)
	}
	return b, nil
}

func (g *Generation) Seq() uint64           { return g.seq }
func (g *Generation) Addr() uintptr         { return g.addr }
func (g *Generation) Layout() layout.Layout { return g.layout }
func (g *Generation) Props() []Prop         { return g.props }
func (g *Generation) States() []State       { return g.states }
func (g *Generation) Released() bool        { return g.released }

// Release marks the generation dead. The caller frees the native block.
func (g *Generation) Release() {
	g.released = true
}

// PropPayload returns n payload bytes of a descriptor in this generation.
func (g *Generation) PropPayload(p Prop, n int) ([]byte, error) {
	return g.payload(p.Addr, g.layout.PayloadOffset(false), n)
}

// StatePayload returns n payload bytes of a state record in this generation.
func (g *Generation) StatePayload(s State, n int) ([]byte, error) {
	return g.payload(s.Addr, g.layout.PayloadOffset(true), n)
}

func (g *Generation) payload(addr uintptr, off, n int) ([]byte, error) {
	if g.released {
		return nil, fault.InvalidAccess("generation", "payload", "generation %d already released", g.seq)
	}
	if addr == 0 {
		return nil, fault.InvalidAccess("generation", "payload", "null record")
	}
	b, err := g.space.Bytes(addr+uintptr(off), n)
	if err != nil {
		return nil, fault.InvalidAccess("generation", "payload", "record at 0x%x: %v", addr, err)
	}
	return b, nil
}
