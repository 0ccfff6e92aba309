// Package dispatch turns newly created descriptors into application-level
// representations through one factory per class.
package dispatch

import (
	"slices"

	"go.uber.org/zap"

	"github.com/criticalpoint/syncbridge/internal/fault"
	"github.com/criticalpoint/syncbridge/internal/generation"
	"github.com/criticalpoint/syncbridge/internal/id"
	"github.com/criticalpoint/syncbridge/internal/shape"
)

// Factory builds the representation of a new descriptor. Returning ok=false
// means the object has no representation.
type Factory[R any] func(gen *generation.Generation, p generation.Prop) (rep R, ok bool, err error)

type Dispatcher[R any] struct {
	factories map[id.ClassTag]Factory[R]
	log       *zap.Logger
}

func New[R any](log *zap.Logger) *Dispatcher[R] {
	return &Dispatcher[R]{
		factories: make(map[id.ClassTag]Factory[R]),
		log:       log,
	}
}

// Register installs f for class. A class gets one factory for the lifetime
// of the dispatcher.
func (d *Dispatcher[R]) Register(class id.ClassTag, f Factory[R]) error {
	if class.IsInvalid() {
		return fault.Configuration("dispatch", "register", "factory for the invalid class")
	}
	if f == nil {
		return fault.Configuration("dispatch", "register", "nil factory for %s", class)
	}
	if _, ok := d.factories[class]; ok {
		return fault.Configuration("dispatch", "register", "factory for %s already registered", class)
	}
	d.factories[class] = f
	d.log.Debug("factory registered", zap.Stringer("class", class))
	return nil
}

// Register installs a typed factory. The class is the one P declares and the
// payload is decoded before fn is called.
func Register[P shape.Prop, R any](d *Dispatcher[R], fn func(obj id.ObjectID, p P) (R, bool, error)) error {
	info, err := shape.PropOf[P]()
	if err != nil {
		return err
	}
	return d.Register(info.Class, func(gen *generation.Generation, p generation.Prop) (R, bool, error) {
		var zero R
		b, err := gen.PropPayload(p, info.Size)
		if err != nil {
			return zero, false, err
		}
		v, err := shape.Decode[P](b, gen.Layout().Order)
		if err != nil {
			return zero, false, fault.Protocol("dispatch", "decode", "%s prop of %s: %v", info.Class, p.ObjectID, err)
		}
		return fn(p.ObjectID, v)
	})
}

func (d *Dispatcher[R]) Registered(class id.ClassTag) bool {
	_, ok := d.factories[class]
	return ok
}

// Classes lists the classes with a factory, in ascending order.
func (d *Dispatcher[R]) Classes() []id.ClassTag {
	out := make([]id.ClassTag, 0, len(d.factories))
	for c := range d.factories {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Dispatch runs the factory of every non-null descriptor in gen. Classes
// without a factory are skipped.
func (d *Dispatcher[R]) Dispatch(gen *generation.Generation) ([]R, error) {
	var reps []R
	for _, p := range gen.Props() {
		if p.IsNull() {
			continue
		}
		f, ok := d.factories[p.Class]
		if !ok {
			d.log.Debug("no factory", zap.Stringer("class", p.Class), zap.Uint64("object_id", uint64(p.ObjectID)))
			continue
		}
		rep, ok, err := f(gen, p)
		if err != nil {
			return reps, err
		}
		if ok {
			reps = append(reps, rep)
		}
	}
	return reps, nil
}
