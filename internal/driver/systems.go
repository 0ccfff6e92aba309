package driver

import (
	"time"

	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/core/event"
	coresys "github.com/criticalpoint/syncbridge/internal/core/system"
	"github.com/criticalpoint/syncbridge/internal/generation"
	"github.com/criticalpoint/syncbridge/internal/registry"
)

// tick is the state the phases of one Advance share.
type tick[R any] struct {
	gen      *generation.Generation
	prev     *generation.Generation
	start    time.Time
	reps     []R
	result   registry.Result
	released bool
}

// dispatchSystem materializes the descriptors new in this generation.
// Phase 0 (Dispatch).
type dispatchSystem[R any] struct {
	agent *Agent[R]
}

func (s *dispatchSystem[R]) Phase() coresys.Phase { return coresys.PhaseDispatch }

func (s *dispatchSystem[R]) Run(t *tick[R]) error {
	reps, err := s.agent.dispatcher.Dispatch(t.gen)
	t.reps = reps
	return err
}

// reconcileSystem rebinds every handle against the new generation. It runs
// after dispatch so handles created by factories bind in the same tick.
// Phase 1 (Reconcile).
type reconcileSystem[R any] struct {
	agent *Agent[R]
}

func (s *reconcileSystem[R]) Phase() coresys.Phase { return coresys.PhaseReconcile }

func (s *reconcileSystem[R]) Run(t *tick[R]) error {
	res, err := s.agent.registry.Reconcile(t.gen)
	t.result = res
	return err
}

// releaseSystem frees the previous generation. Phase 2 (Release).
type releaseSystem[R any] struct {
	agent *Agent[R]
}

func (s *releaseSystem[R]) Phase() coresys.Phase { return coresys.PhaseRelease }

func (s *releaseSystem[R]) Run(t *tick[R]) error {
	s.agent.releasePrevious(t)
	return nil
}

// recordSystem updates the tick accounting and hands it to the recorder.
// A journal failure is logged; the tick itself already succeeded.
// Phase 3 (Record).
type recordSystem[R any] struct {
	agent *Agent[R]
}

func (s *recordSystem[R]) Phase() coresys.Phase { return coresys.PhaseRecord }

func (s *recordSystem[R]) Run(t *tick[R]) error {
	a := s.agent
	rec := TickRecord{
		Seq:          t.gen.Seq(),
		Props:        len(t.gen.Props()),
		States:       len(t.gen.States()),
		Materialized: len(t.reps),
		Bound:        t.result.Bound,
		Unbound:      t.result.Unbound,
		Misses:       t.result.Misses,
		Collected:    t.result.Collected,
		Expired:      len(t.result.Expired),
		Released:     t.prev != nil,
		Duration:     time.Since(t.start),
	}
	a.last = rec
	a.materialized += uint64(rec.Materialized)
	a.expired += uint64(rec.Expired)

	if a.recorder != nil {
		if err := a.recorder.Record(rec); err != nil {
			a.log.Error("tick journal failed", zap.Uint64("generation", rec.Seq), zap.Error(err))
		}
	}
	a.log.Debug("tick",
		zap.Uint64("generation", rec.Seq),
		zap.Int("props", rec.Props),
		zap.Int("states", rec.States),
		zap.Int("materialized", rec.Materialized),
		zap.Int("bound", rec.Bound),
		zap.Duration("took", rec.Duration))
	return nil
}

// notifySystem emits the tick events and delivers them. Phase 4 (Notify).
type notifySystem[R any] struct {
	agent *Agent[R]
}

func (s *notifySystem[R]) Phase() coresys.Phase { return coresys.PhaseNotify }

func (s *notifySystem[R]) Run(t *tick[R]) error {
	bus := s.agent.bus
	seq := t.gen.Seq()
	if len(t.reps) > 0 {
		event.Emit(bus, event.Materialized{Seq: seq, Props: len(t.gen.Props()), Count: len(t.reps)})
	}
	for _, obj := range t.result.Expired {
		event.Emit(bus, event.Expired{Seq: seq, ObjectID: obj})
	}
	event.Emit(bus, event.Advanced{
		Seq:          seq,
		Materialized: len(t.reps),
		Bound:        t.result.Bound,
		Unbound:      t.result.Unbound,
		Misses:       t.result.Misses,
		Collected:    t.result.Collected,
		Released:     t.prev != nil,
	})
	bus.SwapBuffers()
	bus.DispatchAll()
	return nil
}
