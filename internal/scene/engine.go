// Package scene is an in-process stand-in for the native simulation module.
// Resource and id manifests and scene timelines are YAML; generations are
// laid out in a memory.Arena exactly as the native module lays them out.
package scene

import (
	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/generation"
	"github.com/criticalpoint/syncbridge/internal/layout"
	"github.com/criticalpoint/syncbridge/internal/memory"
	"github.com/criticalpoint/syncbridge/internal/native"
)

type session struct {
	sim   *Simulation
	cache native.Handle
}

// Engine implements native.Engine. It is driven from a single goroutine.
type Engine struct {
	layout    layout.Layout
	arena     *memory.Arena
	log       *zap.Logger
	nativeLog *zap.Logger

	next     native.Handle
	caches   map[native.Handle]*Cache
	sessions map[native.Handle]*session
	blocks   map[uintptr]generation.Block
}

var _ native.Engine = (*Engine)(nil)

func NewEngine(l layout.Layout, log *zap.Logger) *Engine {
	return &Engine{
		layout:    l,
		arena:     memory.NewArena(),
		log:       log,
		nativeLog: log.Named("native"),
		next:      0x1000,
		caches:    make(map[native.Handle]*Cache),
		sessions:  make(map[native.Handle]*session),
		blocks:    make(map[uintptr]generation.Block),
	}
}

// InitLogger sends the engine's own log to a JSON file at path.
func (e *Engine) InitLogger(path string) bool {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	l, err := cfg.Build()
	if err != nil {
		e.log.Warn("native log file", zap.String("path", path), zap.Error(err))
		return false
	}
	e.nativeLog = l.Named("native")
	return true
}

func (e *Engine) handle() native.Handle {
	e.next += 0x10
	return e.next
}

func (e *Engine) CreateResourceCache(root, resourceManifest, idManifest string) native.Handle {
	c, err := LoadCache(root, resourceManifest, idManifest)
	if err != nil {
		e.nativeLog.Error("resource cache", zap.String("root", root), zap.Error(err))
		return 0
	}
	h := e.handle()
	e.caches[h] = c
	e.nativeLog.Info("resource cache created",
		zap.Uintptr("handle", uintptr(h)),
		zap.Int("ids", c.IDs.Count()),
		zap.Int("scenes", len(c.Resources.Scenes)))
	return h
}

func (e *Engine) DestroyResourceCache(cache native.Handle) {
	if _, ok := e.caches[cache]; !ok {
		e.nativeLog.Error("destroy of unknown resource cache", zap.Uintptr("handle", uintptr(cache)))
		return
	}
	for _, s := range e.sessions {
		if s.cache == cache {
			e.nativeLog.Error("resource cache destroyed under a live session", zap.Uintptr("handle", uintptr(cache)))
			break
		}
	}
	delete(e.caches, cache)
}

func (e *Engine) CreateSession(cache native.Handle, ticksPerSecond uint32, initialSceneID string) native.Handle {
	c, ok := e.caches[cache]
	if !ok {
		e.nativeLog.Error("session on unknown resource cache", zap.Uintptr("cache", uintptr(cache)))
		return 0
	}
	sim, err := NewSimulation(c, initialSceneID, ticksPerSecond)
	if err != nil {
		e.nativeLog.Error("session", zap.String("scene", initialSceneID), zap.Error(err))
		return 0
	}
	h := e.handle()
	e.sessions[h] = &session{sim: sim, cache: cache}
	e.nativeLog.Info("session created", zap.Uintptr("handle", uintptr(h)), zap.String("scene", initialSceneID))
	return h
}

func (e *Engine) DestroySession(h native.Handle) {
	if _, ok := e.sessions[h]; !ok {
		e.nativeLog.Error("destroy of unknown session", zap.Uintptr("handle", uintptr(h)))
		return
	}
	delete(e.sessions, h)
}

func (e *Engine) AdvanceSession(h native.Handle) uintptr {
	s, ok := e.sessions[h]
	if !ok {
		e.nativeLog.Error("advance of unknown session", zap.Uintptr("handle", uintptr(h)))
		return 0
	}
	b := generation.NewBuilder(e.arena, e.layout)
	if err := s.sim.Step(b); err != nil {
		e.nativeLog.Error("tick", zap.Uint64("tick", s.sim.Tick()), zap.Error(err))
		return 0
	}
	blk, err := b.Build()
	if err != nil {
		e.nativeLog.Error("publish", zap.Uint64("tick", s.sim.Tick()), zap.Error(err))
		return 0
	}
	e.blocks[blk.Addr] = blk
	e.nativeLog.Debug("tick", zap.Uint64("tick", s.sim.Tick()), zap.Int("live", s.sim.Live()))
	return blk.Addr
}

func (e *Engine) FreeGeneration(addr uintptr) {
	blk, ok := e.blocks[addr]
	if !ok {
		e.nativeLog.Error("free of unknown generation", zap.Uintptr("addr", addr))
		return
	}
	if err := blk.Free(e.arena); err != nil {
		e.nativeLog.Error("free generation", zap.Uintptr("addr", addr), zap.Error(err))
	}
	delete(e.blocks, addr)
}

func (e *Engine) Memory() memory.Space { return e.arena }

// Outstanding is the number of published generations not yet freed.
func (e *Engine) Outstanding() int { return len(e.blocks) }

// Arena exposes the backing address space.
func (e *Engine) Arena() *memory.Arena { return e.arena }
