package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted during an Advance go to
// the back buffer; the driver swaps and dispatches them once the tick has
// been fully reconciled, so handlers never observe a half-built tick.
type Bus struct {
	mu       sync.Mutex // only protects handler registration
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	order    []reflect.Type
	known    map[reflect.Type]bool
	handlers map[reflect.Type][]any
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		known:    make(map[reflect.Type]bool),
		handlers: make(map[reflect.Type][]any),
	}
}

// Emit queues an event into the back buffer.
func Emit[T any](b *Bus, event T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if !b.known[t] {
		b.known[t] = true
		b.order = append(b.order, t)
	}
	b.back[t] = append(b.back[t], event)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

// SwapBuffers rotates back to front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
}

// Pending is the number of events waiting in the back buffer.
func (b *Bus) Pending() int {
	n := 0
	for _, evs := range b.back {
		n += len(evs)
	}
	return n
}

// DispatchAll delivers the front buffer. Event types are delivered in the
// order they were first emitted; events of one type in emission order.
func (b *Bus) DispatchAll() {
	b.mu.Lock()
	handlers := make(map[reflect.Type][]any, len(b.handlers))
	for t, hs := range b.handlers {
		handlers[t] = hs
	}
	b.mu.Unlock()

	for _, t := range b.order {
		for _, ev := range b.front[t] {
			for _, h := range handlers[t] {
				callHandler(h, ev)
			}
		}
	}
}

func callHandler(handler any, event any) {
	reflect.ValueOf(handler).Call([]reflect.Value{reflect.ValueOf(event)})
}
