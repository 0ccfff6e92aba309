// Package memory gives the bridge a bounds-checked view of memory owned by
// the native engine.
package memory

import (
	"errors"
	"fmt"
	"slices"
	"unsafe"
)

// ErrUnmapped is returned for ranges that are not backed by a live block.
var ErrUnmapped = errors.New("memory: address not mapped")

// Space resolves foreign addresses to byte ranges. A returned slice is only
// valid while the block that backs it is alive.
type Space interface {
	Bytes(addr uintptr, n int) ([]byte, error)
}

// Native reads the memory of the running process. Addresses must come from
// the native module; nothing here can tell a stale address from a live one.
type Native struct{}

func (Native) Bytes(addr uintptr, n int) ([]byte, error) {
	if addr == 0 || n < 0 {
		return nil, fmt.Errorf("read %d bytes at 0x%x: %w", n, addr, ErrUnmapped)
	}
	if n == 0 {
		return []byte{}, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n), nil
}

const (
	arenaBase  = 0x10000
	arenaAlign = 16
)

type block struct {
	base uintptr
	data []byte
}

// Arena is an in-process address space. Blocks get monotonically increasing
// addresses that are never handed out twice, so a read through an address of
// a freed block always fails instead of aliasing a newer one.
type Arena struct {
	next   uintptr
	blocks []block
	live   int
}

func NewArena() *Arena {
	return &Arena{next: arenaBase}
}

// Alloc reserves a zeroed block of n bytes and returns its address.
func (a *Arena) Alloc(n int) (uintptr, []byte) {
	if n < 1 {
		n = 1
	}
	base := a.next
	data := make([]byte, n)
	a.blocks = append(a.blocks, block{base: base, data: data})
	a.next = (base + uintptr(n) + arenaAlign) &^ (arenaAlign - 1)
	a.live += n
	return base, data
}

// Free releases the block that starts at addr.
func (a *Arena) Free(addr uintptr) error {
	i, ok := slices.BinarySearchFunc(a.blocks, addr, func(b block, addr uintptr) int {
		switch {
		case b.base < addr:
			return -1
		case b.base > addr:
			return 1
		}
		return 0
	})
	if !ok {
		return fmt.Errorf("free 0x%x: %w", addr, ErrUnmapped)
	}
	a.live -= len(a.blocks[i].data)
	a.blocks = slices.Delete(a.blocks, i, i+1)
	return nil
}

func (a *Arena) Bytes(addr uintptr, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("read %d bytes at 0x%x: %w", n, addr, ErrUnmapped)
	}
	// first block whose base is beyond addr; the candidate sits right before it
	i, _ := slices.BinarySearchFunc(a.blocks, addr+1, func(b block, addr uintptr) int {
		if b.base < addr {
			return -1
		}
		if b.base > addr {
			return 1
		}
		return 0
	})
	if i == 0 {
		return nil, fmt.Errorf("read %d bytes at 0x%x: %w", n, addr, ErrUnmapped)
	}
	b := a.blocks[i-1]
	if addr-b.base >= uintptr(len(b.data)) {
		return nil, fmt.Errorf("read %d bytes at 0x%x: %w", n, addr, ErrUnmapped)
	}
	off := int(addr - b.base)
	if n > len(b.data)-off {
		return nil, fmt.Errorf("read %d bytes at 0x%x: %w", n, addr, ErrUnmapped)
	}
	return b.data[off : off+n : off+n], nil
}

// Blocks is the number of live blocks.
func (a *Arena) Blocks() int { return len(a.blocks) }

// LiveBytes is the number of bytes held by live blocks.
func (a *Arena) LiveBytes() int { return a.live }
