package scripting

import (
	"bytes"
	"encoding/binary"
	"math"

	lua "github.com/yuin/gopher-lua"
)

// openPayloadLib exposes little-endian readers over payload strings.
// Offsets are zero-based; reading past the end raises a Lua error.
//
//	le_u16(s, off)  le_u32(s, off)  le_i32(s, off)  le_u64(s, off)
//	le_f32(s, off)  cstr(s, off, n)
func openPayloadLib(vm *lua.LState) {
	vm.SetGlobal("le_u16", vm.NewFunction(func(L *lua.LState) int {
		b := span(L, 2)
		L.Push(lua.LNumber(binary.LittleEndian.Uint16(b)))
		return 1
	}))
	vm.SetGlobal("le_u32", vm.NewFunction(func(L *lua.LState) int {
		b := span(L, 4)
		L.Push(lua.LNumber(binary.LittleEndian.Uint32(b)))
		return 1
	}))
	vm.SetGlobal("le_i32", vm.NewFunction(func(L *lua.LState) int {
		b := span(L, 4)
		L.Push(lua.LNumber(int32(binary.LittleEndian.Uint32(b))))
		return 1
	}))
	vm.SetGlobal("le_u64", vm.NewFunction(func(L *lua.LState) int {
		b := span(L, 8)
		L.Push(lua.LNumber(binary.LittleEndian.Uint64(b)))
		return 1
	}))
	vm.SetGlobal("le_f32", vm.NewFunction(func(L *lua.LState) int {
		b := span(L, 4)
		L.Push(lua.LNumber(math.Float32frombits(binary.LittleEndian.Uint32(b))))
		return 1
	}))
	vm.SetGlobal("cstr", vm.NewFunction(func(L *lua.LState) int {
		b := span(L, L.CheckInt(3))
		if i := bytes.IndexByte(b, 0); i >= 0 {
			b = b[:i]
		}
		L.Push(lua.LString(b))
		return 1
	}))
}

func span(L *lua.LState, n int) []byte {
	s := L.CheckString(1)
	off := L.CheckInt(2)
	if off < 0 || n < 0 || off+n > len(s) {
		L.RaiseError("read of %d bytes at %d past payload of %d bytes", n, off, len(s))
		return nil
	}
	return []byte(s[off : off+n])
}
