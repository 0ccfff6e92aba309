package driver

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/core/event"
	"github.com/criticalpoint/syncbridge/internal/dispatch"
	"github.com/criticalpoint/syncbridge/internal/fault"
	"github.com/criticalpoint/syncbridge/internal/generation"
	"github.com/criticalpoint/syncbridge/internal/id"
	"github.com/criticalpoint/syncbridge/internal/layout"
	"github.com/criticalpoint/syncbridge/internal/memory"
	"github.com/criticalpoint/syncbridge/internal/native"
	"github.com/criticalpoint/syncbridge/internal/registry"
)

type enemyProp struct {
	Level uint32
}

func (enemyProp) PropClass() id.ClassTag { return id.ClassCharaHuman }

type enemyState struct {
	HP int32
}

func (enemyState) StateClass() id.ClassTag { return id.ClassCharaHuman }

type enemy = *registry.Handle[enemyState]

// world lays out one generation per AdvanceSession call from a script of
// ticks and frees blocks handed back through FreeGeneration.
type world struct {
	arena  *memory.Arena
	layout layout.Layout
	blocks map[uintptr]generation.Block
	ticks  []func(b *generation.Builder)
	next   int
	freed  int
}

func newWorld() *world {
	l, err := layout.Host()
	Expect(err).NotTo(HaveOccurred())
	return &world{arena: memory.NewArena(), layout: l, blocks: make(map[uintptr]generation.Block)}
}

func (w *world) advance(native.Handle) uintptr {
	b := generation.NewBuilder(w.arena, w.layout)
	if w.next < len(w.ticks) && w.ticks[w.next] != nil {
		w.ticks[w.next](b)
	}
	w.next++
	blk, err := b.Build()
	Expect(err).NotTo(HaveOccurred())
	w.blocks[blk.Addr] = blk
	return blk.Addr
}

func (w *world) free(addr uintptr) {
	blk, ok := w.blocks[addr]
	Expect(ok).To(BeTrue(), "freeing unknown block 0x%x", addr)
	Expect(blk.Free(w.arena)).To(Succeed())
	delete(w.blocks, addr)
	w.freed++
}

type countingRecorder struct {
	records []TickRecord
	err     error
}

func (r *countingRecorder) Record(rec TickRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

var _ = Describe("Agent", func() {
	const (
		cache   = native.Handle(0x10)
		session = native.Handle(0x20)
	)

	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		w        *world
		reg      *registry.Registry
		d        *dispatch.Dispatcher[enemy]
		rec      *countingRecorder
		agent    *Agent[enemy]

		resources = Resources{
			LogPath:          "./critical_point.log",
			Root:             "./Assets/CriticalPoint/",
			ResourceManifest: "resource.yml",
			IDManifest:       "id.yml",
		}
		sess = Session{TicksPerSecond: 60, InitialScene: "Prefab.Scene.1"}
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)
		w = newWorld()
		reg = registry.New(zap.NewNop())
		d = dispatch.New[enemy](zap.NewNop())
		rec = &countingRecorder{}

		var err error
		agent, err = New(engine, d, reg, zap.NewNop(), WithRecorder[enemy](rec))
		Expect(err).NotTo(HaveOccurred())

		engine.EXPECT().Memory().Return(w.arena).AnyTimes()
		engine.EXPECT().AdvanceSession(session).DoAndReturn(w.advance).AnyTimes()
		engine.EXPECT().FreeGeneration(gomock.Any()).Do(w.free).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	load := func() {
		engine.EXPECT().InitLogger(resources.LogPath).Return(true)
		engine.EXPECT().CreateResourceCache(resources.Root, resources.ResourceManifest, resources.IDManifest).Return(cache)
		Expect(agent.Load(resources)).To(Succeed())
	}

	start := func() {
		load()
		engine.EXPECT().CreateSession(cache, uint32(60), "Prefab.Scene.1").Return(session)
		Expect(agent.Initialize(sess)).To(Succeed())
	}

	stop := func() {
		engine.EXPECT().DestroySession(session)
		engine.EXPECT().DestroyResourceCache(cache)
		Expect(agent.Finalize()).To(Succeed())
		Expect(agent.Unload()).To(Succeed())
	}

	Context("lifecycle", func() {
		It("should reject Initialize before Load", func() {
			Expect(fault.IsConfiguration(agent.Initialize(sess))).To(BeTrue())
		})

		It("should reject Advance before Initialize", func() {
			load()
			_, err := agent.Advance()
			Expect(fault.IsConfiguration(err)).To(BeTrue())
		})

		It("should reject loading twice", func() {
			load()
			Expect(fault.IsConfiguration(agent.Load(resources))).To(BeTrue())
		})

		It("should reject initializing twice", func() {
			start()
			Expect(fault.IsConfiguration(agent.Initialize(sess))).To(BeTrue())
		})

		It("should reject Unload while the session is live", func() {
			start()
			Expect(fault.IsConfiguration(agent.Unload())).To(BeTrue())
			Expect(agent.Loaded()).To(BeTrue())
			stop()
			Expect(agent.Loaded()).To(BeFalse())
			Expect(agent.Live()).To(BeFalse())
		})

		It("should reject Finalize without a session", func() {
			load()
			Expect(fault.IsConfiguration(agent.Finalize())).To(BeTrue())
		})

		It("should keep loading when the native logger fails", func() {
			engine.EXPECT().InitLogger(resources.LogPath).Return(false)
			engine.EXPECT().CreateResourceCache(gomock.Any(), gomock.Any(), gomock.Any()).Return(cache)
			Expect(agent.Load(resources)).To(Succeed())
		})

		It("should fail with a resource error for a null cache", func() {
			engine.EXPECT().InitLogger(gomock.Any()).Return(true)
			engine.EXPECT().CreateResourceCache(gomock.Any(), gomock.Any(), gomock.Any()).Return(native.Handle(0))
			Expect(fault.IsResource(agent.Load(resources))).To(BeTrue())
			Expect(agent.Loaded()).To(BeFalse())
		})

		It("should fail with a resource error for a null session", func() {
			load()
			engine.EXPECT().CreateSession(cache, gomock.Any(), gomock.Any()).Return(native.Handle(0))
			Expect(fault.IsResource(agent.Initialize(sess))).To(BeTrue())
			Expect(agent.Live()).To(BeFalse())
		})

		It("should tear down in order on Close", func() {
			start()
			_, err := agent.Advance()
			Expect(err).NotTo(HaveOccurred())

			gomock.InOrder(
				engine.EXPECT().DestroySession(session),
				engine.EXPECT().DestroyResourceCache(cache),
			)
			Expect(agent.Close()).To(Succeed())
			Expect(w.blocks).To(BeEmpty())
		})
	})

	Context("with a null tick", func() {
		It("should fail with a resource error", func() {
			other := NewMockEngine(mockCtrl)
			a, err := New(other, d, reg, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			other.EXPECT().InitLogger(gomock.Any()).Return(true)
			other.EXPECT().CreateResourceCache(gomock.Any(), gomock.Any(), gomock.Any()).Return(cache)
			other.EXPECT().CreateSession(cache, gomock.Any(), gomock.Any()).Return(session)
			other.EXPECT().AdvanceSession(session).Return(uintptr(0))
			Expect(a.Load(resources)).To(Succeed())
			Expect(a.Initialize(sess)).To(Succeed())

			_, err = a.Advance()
			Expect(fault.IsResource(err)).To(BeTrue())
			Expect(a.Advanced()).To(BeZero())
		})

		It("should hand an undecodable block back to the engine", func() {
			other := NewMockEngine(mockCtrl)
			a, err := New(other, d, reg, zap.NewNop())
			Expect(err).NotTo(HaveOccurred())

			other.EXPECT().InitLogger(gomock.Any()).Return(true)
			other.EXPECT().CreateResourceCache(gomock.Any(), gomock.Any(), gomock.Any()).Return(cache)
			other.EXPECT().CreateSession(cache, gomock.Any(), gomock.Any()).Return(session)
			other.EXPECT().Memory().Return(memory.NewArena())
			other.EXPECT().AdvanceSession(session).Return(uintptr(0xdead0))
			other.EXPECT().FreeGeneration(uintptr(0xdead0)).Times(1)
			Expect(a.Load(resources)).To(Succeed())
			Expect(a.Initialize(sess)).To(Succeed())

			_, err = a.Advance()
			Expect(fault.IsResource(err)).To(BeTrue())
		})
	})

	Context("advancing", func() {
		BeforeEach(func() {
			start()
		})

		It("should release exactly one generation per Advance after the first", func() {
			for i := 1; i <= 5; i++ {
				_, err := agent.Advance()
				Expect(err).NotTo(HaveOccurred())
				Expect(agent.Advanced()).To(Equal(uint64(i)))
				Expect(agent.Released()).To(Equal(uint64(i - 1)))
				Expect(w.blocks).To(HaveLen(1))
			}
			Expect(w.freed).To(Equal(4))

			stop()
			Expect(agent.Released()).To(Equal(agent.Advanced()))
			Expect(w.arena.Blocks()).To(BeZero())
		})

		It("should materialize and bind a new object in the same tick", func() {
			calls := 0
			Expect(dispatch.Register(d, func(obj id.ObjectID, p enemyProp) (enemy, bool, error) {
				calls++
				h, err := registry.NewHandle[enemyState](reg, obj)
				return h, err == nil, err
			})).To(Succeed())

			w.ticks = []func(b *generation.Builder){
				func(b *generation.Builder) {
					_, err := generation.AddPropShape(b, 1, enemyProp{Level: 2})
					Expect(err).NotTo(HaveOccurred())
					_, err = generation.AddStateShape(b, 1, id.LifecycleCreated, enemyState{HP: 10})
					Expect(err).NotTo(HaveOccurred())
				},
				nil,
			}

			reps, err := agent.Advance()
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal(1))
			Expect(reps).To(HaveLen(1))

			h := reps[0]
			Expect(h.IsBound()).To(BeTrue())
			st, err := h.State()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.HP).To(Equal(int32(10)))
			lc, err := h.Lifecycle()
			Expect(err).NotTo(HaveOccurred())
			Expect(lc).To(Equal(id.LifecycleCreated))

			reps, err = agent.Advance()
			Expect(err).NotTo(HaveOccurred())
			Expect(reps).To(BeEmpty())
			Expect(calls).To(Equal(1))
			Expect(h.IsBound()).To(BeFalse())
			Expect(reg.Contains(1)).To(BeFalse())
		})

		It("should skip descriptors of unknown classes", func() {
			w.ticks = []func(b *generation.Builder){
				func(b *generation.Builder) { b.AddProp(7, id.ClassHitPathRay, nil) },
			}
			reps, err := agent.Advance()
			Expect(err).NotTo(HaveOccurred())
			Expect(reps).To(BeEmpty())
		})

		It("should deliver tick events at the end of Advance", func() {
			var advanced []event.Advanced
			var expired []event.Expired
			event.Subscribe(agent.Bus(), func(e event.Advanced) { advanced = append(advanced, e) })
			event.Subscribe(agent.Bus(), func(e event.Expired) { expired = append(expired, e) })

			_, err := registry.NewHandle[enemyState](reg, 1)
			Expect(err).NotTo(HaveOccurred())
			w.ticks = []func(b *generation.Builder){
				func(b *generation.Builder) {
					_, err := generation.AddStateShape(b, 1, id.LifecycleRunning, enemyState{HP: 1})
					Expect(err).NotTo(HaveOccurred())
				},
			}

			_, err = agent.Advance()
			Expect(err).NotTo(HaveOccurred())
			Expect(advanced).To(HaveLen(1))
			Expect(advanced[0].Bound).To(Equal(1))
			Expect(advanced[0].Released).To(BeFalse())
			Expect(expired).To(BeEmpty())

			_, err = agent.Advance()
			Expect(err).NotTo(HaveOccurred())
			Expect(advanced).To(HaveLen(2))
			Expect(advanced[1].Released).To(BeTrue())
			Expect(expired).To(Equal([]event.Expired{{Seq: 2, ObjectID: 1}}))
		})

		It("should journal one record per Advance", func() {
			rec.err = errors.New("journal down")
			for range 3 {
				_, err := agent.Advance()
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(rec.records).To(HaveLen(3))
			Expect(rec.records[0].Released).To(BeFalse())
			Expect(rec.records[2].Seq).To(Equal(uint64(3)))
			Expect(agent.Stats().LastTick.Seq).To(Equal(uint64(3)))
		})

		It("should stop on a class disagreement without leaking a generation", func() {
			h, err := registry.NewHandle[enemyState](reg, 3)
			Expect(err).NotTo(HaveOccurred())

			_, err = agent.Advance()
			Expect(err).NotTo(HaveOccurred())

			w.ticks = []func(b *generation.Builder){
				nil,
				func(b *generation.Builder) { b.AddState(3, id.ClassSkill, id.LifecycleRunning, nil) },
			}
			_, err = agent.Advance()
			Expect(fault.IsProtocol(err)).To(BeTrue())
			Expect(h.IsBound()).To(BeFalse())
			Expect(agent.Released()).To(Equal(agent.Advanced() - 1))
			Expect(w.blocks).To(HaveLen(1))
		})

		It("should publish stats", func() {
			_, err := agent.Advance()
			Expect(err).NotTo(HaveOccurred())

			st := agent.Stats()
			Expect(st.Loaded).To(BeTrue())
			Expect(st.Live).To(BeTrue())
			Expect(st.Advanced).To(Equal(uint64(1)))
			Expect(st.Released).To(BeZero())
		})
	})
})
