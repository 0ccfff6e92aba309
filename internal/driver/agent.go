// Package driver owns the native session and turns every engine tick into a
// reconciled view: dispatch new descriptors, rebind handles, then free the
// previous generation.
package driver

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/core/event"
	coresys "github.com/criticalpoint/syncbridge/internal/core/system"
	"github.com/criticalpoint/syncbridge/internal/dispatch"
	"github.com/criticalpoint/syncbridge/internal/fault"
	"github.com/criticalpoint/syncbridge/internal/generation"
	"github.com/criticalpoint/syncbridge/internal/layout"
	"github.com/criticalpoint/syncbridge/internal/native"
	"github.com/criticalpoint/syncbridge/internal/registry"
)

// Resources names what Load hands to the native resource cache.
type Resources struct {
	LogPath          string
	Root             string
	ResourceManifest string
	IDManifest       string
}

// Session names what Initialize hands to the native session.
type Session struct {
	TicksPerSecond uint32
	InitialScene   string
}

// TickRecord is the accounting of one Advance.
type TickRecord struct {
	Seq          uint64
	Props        int
	States       int
	Materialized int
	Bound        int
	Unbound      int
	Misses       int
	Collected    int
	Expired      int
	Released     bool
	Duration     time.Duration
}

// Recorder receives one TickRecord per Advance.
type Recorder interface {
	Record(rec TickRecord) error
}

// Stats is the snapshot published after every state change. It is the only
// part of the agent safe to read from other goroutines.
type Stats struct {
	Loaded       bool           `json:"loaded"`
	Live         bool           `json:"live"`
	Seq          uint64         `json:"seq"`
	Advanced     uint64         `json:"advanced"`
	Released     uint64         `json:"released"`
	Materialized uint64         `json:"materialized"`
	Expired      uint64         `json:"expired"`
	Registry     registry.Stats `json:"registry"`
	LastTick     TickRecord     `json:"last_tick"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type Option[R any] func(*Agent[R])

// WithRecorder journals every tick.
func WithRecorder[R any](rec Recorder) Option[R] {
	return func(a *Agent[R]) { a.recorder = rec }
}

// WithLayout overrides the host layout, for engines built for another
// pointer width.
func WithLayout[R any](l layout.Layout) Option[R] {
	return func(a *Agent[R]) { a.layout = l }
}

// Agent is not safe for concurrent use except for Stats.
type Agent[R any] struct {
	engine     native.Engine
	dispatcher *dispatch.Dispatcher[R]
	registry   *registry.Registry
	bus        *event.Bus
	runner     *coresys.Runner[*tick[R]]
	recorder   Recorder
	layout     layout.Layout
	log        *zap.Logger

	cache   native.Handle
	session native.Handle
	current *generation.Generation
	seq     uint64

	advanced     uint64
	released     uint64
	materialized uint64
	expired      uint64
	last         TickRecord

	stats atomic.Pointer[Stats]
}

// New builds an agent. The wire layout is computed and validated here, so a
// host the layout cannot describe fails before anything is loaded.
func New[R any](engine native.Engine, d *dispatch.Dispatcher[R], reg *registry.Registry, log *zap.Logger, opts ...Option[R]) (*Agent[R], error) {
	l, err := layout.Host()
	if err != nil {
		return nil, err
	}
	a := &Agent[R]{
		engine:     engine,
		dispatcher: d,
		registry:   reg,
		bus:        event.NewBus(),
		runner:     coresys.NewRunner[*tick[R]](),
		layout:     l,
		log:        log,
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.layout.Validate(); err != nil {
		return nil, err
	}

	a.runner.Register(&dispatchSystem[R]{agent: a})
	a.runner.Register(&reconcileSystem[R]{agent: a})
	a.runner.Register(&releaseSystem[R]{agent: a})
	a.runner.Register(&recordSystem[R]{agent: a})
	a.runner.Register(&notifySystem[R]{agent: a})

	a.publish()
	return a, nil
}

func (a *Agent[R]) Bus() *event.Bus              { return a.bus }
func (a *Agent[R]) Registry() *registry.Registry { return a.registry }
func (a *Agent[R]) Layout() layout.Layout        { return a.layout }
func (a *Agent[R]) Loaded() bool                 { return !a.cache.IsNull() }
func (a *Agent[R]) Live() bool                   { return !a.session.IsNull() }

// Advanced and Released count generations obtained and freed in the current
// session.
func (a *Agent[R]) Advanced() uint64 { return a.advanced }
func (a *Agent[R]) Released() uint64 { return a.released }

// Current is the generation handles are bound to, or nil.
func (a *Agent[R]) Current() *generation.Generation { return a.current }

// Load creates the native resource cache.
func (a *Agent[R]) Load(res Resources) error {
	if !a.cache.IsNull() {
		return fault.Configuration("driver", "load", "resource cache already loaded")
	}
	if res.LogPath != "" && !a.engine.InitLogger(res.LogPath) {
		a.log.Warn("native logger init failed", zap.String("path", res.LogPath))
	}
	cache := a.engine.CreateResourceCache(res.Root, res.ResourceManifest, res.IDManifest)
	if cache.IsNull() {
		return fault.Resource("driver", "load", "native resource cache is null (root %q)", res.Root)
	}
	a.cache = cache
	a.log.Info("resource cache loaded",
		zap.String("root", res.Root),
		zap.String("resource_manifest", res.ResourceManifest),
		zap.String("id_manifest", res.IDManifest))
	a.publish()
	return nil
}

// Initialize starts a session on the loaded resource cache.
func (a *Agent[R]) Initialize(s Session) error {
	if a.cache.IsNull() {
		return fault.Configuration("driver", "initialize", "resource cache not loaded")
	}
	if !a.session.IsNull() {
		return fault.Configuration("driver", "initialize", "session already initialized")
	}
	session := a.engine.CreateSession(a.cache, s.TicksPerSecond, s.InitialScene)
	if session.IsNull() {
		return fault.Resource("driver", "initialize", "native session is null (scene %q)", s.InitialScene)
	}
	a.session = session
	a.seq = 0
	a.advanced, a.released = 0, 0
	a.materialized, a.expired = 0, 0
	a.last = TickRecord{}
	a.log.Info("session initialized",
		zap.Uint32("ticks_per_second", s.TicksPerSecond),
		zap.String("scene", s.InitialScene))
	a.publish()
	return nil
}

// Advance runs one engine tick and returns the representations materialized
// for the descriptors that appeared in it. The previous generation is freed
// only after every handle has been rebound or unbound against the new one.
func (a *Agent[R]) Advance() ([]R, error) {
	if a.session.IsNull() {
		return nil, fault.Configuration("driver", "advance", "session not initialized")
	}
	start := time.Now()

	addr := a.engine.AdvanceSession(a.session)
	if addr == 0 {
		return nil, fault.Resource("driver", "advance", "native tick returned a null generation")
	}
	a.seq++
	gen, err := generation.Decode(a.engine.Memory(), a.layout, addr, a.seq)
	if err != nil {
		a.engine.FreeGeneration(addr)
		return nil, err
	}
	a.advanced++

	t := &tick[R]{gen: gen, prev: a.current, start: start}
	if err := a.runner.Tick(t); err != nil {
		if !t.released {
			// nothing may keep pointing at the block about to be freed
			a.registry.Unbind()
			a.releasePrevious(t)
		}
		a.current = gen
		a.publish()
		a.log.Error("advance failed", zap.Uint64("generation", gen.Seq()), zap.Error(err))
		return t.reps, err
	}
	a.current = gen
	a.publish()
	return t.reps, nil
}

// Finalize ends the session. Every handle is unbound and the live generation
// is freed before the native session is destroyed.
func (a *Agent[R]) Finalize() error {
	if a.session.IsNull() {
		return fault.Configuration("driver", "finalize", "session not initialized")
	}
	a.registry.Unbind()
	if a.current != nil {
		a.engine.FreeGeneration(a.current.Addr())
		a.current.Release()
		a.current = nil
		a.released++
	}
	a.engine.DestroySession(a.session)
	a.session = 0
	a.log.Info("session finalized",
		zap.Uint64("advanced", a.advanced),
		zap.Uint64("released", a.released))
	a.publish()
	return nil
}

// Unload destroys the resource cache. The session must be finalized first.
func (a *Agent[R]) Unload() error {
	if a.cache.IsNull() {
		return fault.Configuration("driver", "unload", "resource cache not loaded")
	}
	if !a.session.IsNull() {
		return fault.Configuration("driver", "unload", "session still live, finalize first")
	}
	a.engine.DestroyResourceCache(a.cache)
	a.cache = 0
	a.log.Info("resource cache unloaded")
	a.publish()
	return nil
}

// Close tears down whatever is still up, in order.
func (a *Agent[R]) Close() error {
	if !a.session.IsNull() {
		if err := a.Finalize(); err != nil {
			return err
		}
	}
	if !a.cache.IsNull() {
		return a.Unload()
	}
	return nil
}

// Stats returns the last published snapshot.
func (a *Agent[R]) Stats() Stats {
	if s := a.stats.Load(); s != nil {
		return *s
	}
	return Stats{}
}

func (a *Agent[R]) releasePrevious(t *tick[R]) {
	t.released = true
	if t.prev == nil {
		return
	}
	a.engine.FreeGeneration(t.prev.Addr())
	t.prev.Release()
	a.released++
}

func (a *Agent[R]) publish() {
	a.stats.Store(&Stats{
		Loaded:       !a.cache.IsNull(),
		Live:         !a.session.IsNull(),
		Seq:          a.seq,
		Advanced:     a.advanced,
		Released:     a.released,
		Materialized: a.materialized,
		Expired:      a.expired,
		Registry:     a.registry.Stats(),
		LastTick:     a.last,
		UpdatedAt:    time.Now(),
	})
}
