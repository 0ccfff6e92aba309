package system

import (
	"fmt"
	"sort"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// run in registration order.
type Runner[T any] struct {
	systems []System[T]
	sorted  bool
}

func NewRunner[T any]() *Runner[T] {
	return &Runner[T]{
		systems: make([]System[T], 0, 8),
	}
}

func (r *Runner[T]) Register(s System[T]) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every system and stops at the first error.
func (r *Runner[T]) Tick(tick T) error {
	r.ensureSorted()
	for _, s := range r.systems {
		if err := s.Run(tick); err != nil {
			return fmt.Errorf("%s: %w", s.Phase(), err)
		}
	}
	return nil
}

// TickPhase runs only the systems of one phase.
func (r *Runner[T]) TickPhase(phase Phase, tick T) error {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() != phase {
			continue
		}
		if err := s.Run(tick); err != nil {
			return fmt.Errorf("%s: %w", phase, err)
		}
	}
	return nil
}

func (r *Runner[T]) Len() int { return len(r.systems) }

func (r *Runner[T]) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
