// Package native describes the entry points the simulation module exposes.
// syncbridge only consumes them; loading the module is the host's concern.
package native

import "github.com/criticalpoint/syncbridge/internal/memory"

//go:generate mockgen -destination=../driver/mock_native_test.go -package=driver github.com/criticalpoint/syncbridge/internal/native Engine

// Handle is an opaque object owned by the native module. Zero is null.
type Handle uintptr

func (h Handle) IsNull() bool { return h == 0 }

// Engine is the native module's surface.
type Engine interface {
	// InitLogger points the module's log at path.
	InitLogger(path string) bool

	CreateResourceCache(root, resourceManifest, idManifest string) Handle
	DestroyResourceCache(cache Handle)

	CreateSession(cache Handle, ticksPerSecond uint32, initialSceneID string) Handle
	DestroySession(session Handle)

	// AdvanceSession runs one tick and returns the address of the published
	// generation block, or 0 on failure. The block stays valid until it is
	// handed back to FreeGeneration.
	AdvanceSession(session Handle) uintptr
	FreeGeneration(addr uintptr)

	// Memory is the address space the returned addresses live in.
	Memory() memory.Space
}
