// Package shape binds payload types to the class tags the engine writes into
// record headers. Each type declares its tag through a method on its value,
// and the pairing is checked once, the first time the type is used.
package shape

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"

	"github.com/criticalpoint/syncbridge/internal/fault"
	"github.com/criticalpoint/syncbridge/internal/id"
)

// State is implemented by the payload type of a state record.
type State interface {
	StateClass() id.ClassTag
}

// Prop is implemented by the payload type of a newly created descriptor.
type Prop interface {
	PropClass() id.ClassTag
}

// Info describes a validated shape.
type Info struct {
	Class id.ClassTag
	Size  int
	Type  reflect.Type
}

type table struct {
	kind    string
	byClass map[id.ClassTag]reflect.Type
	byType  map[reflect.Type]Info
}

var (
	mu     sync.Mutex
	states = newTable("state")
	props  = newTable("prop")
)

func newTable(kind string) *table {
	return &table{
		kind:    kind,
		byClass: make(map[id.ClassTag]reflect.Type),
		byType:  make(map[reflect.Type]Info),
	}
}

// StateOf validates S and returns its info.
func StateOf[S State]() (Info, error) {
	var zero S
	return declare(states, reflect.TypeOf((*S)(nil)).Elem(), zero.StateClass(), zero)
}

// PropOf validates P and returns its info.
func PropOf[P Prop]() (Info, error) {
	var zero P
	return declare(props, reflect.TypeOf((*P)(nil)).Elem(), zero.PropClass(), zero)
}

func declare(t *table, typ reflect.Type, class id.ClassTag, zero any) (Info, error) {
	mu.Lock()
	defer mu.Unlock()

	if info, ok := t.byType[typ]; ok {
		return info, nil
	}
	if class.IsInvalid() {
		return Info{}, fault.Configuration("shape", "declare", "%s shape %s declares the invalid class", t.kind, typ)
	}
	if other, ok := t.byClass[class]; ok && other != typ {
		return Info{}, fault.Configuration("shape", "declare", "%s shapes %s and %s both claim class %s",
			t.kind, other, typ, class)
	}
	size := binary.Size(zero)
	if size <= 0 {
		return Info{}, fault.Configuration("shape", "declare", "%s shape %s is not a fixed-size layout", t.kind, typ)
	}

	info := Info{Class: class, Size: size, Type: typ}
	t.byClass[class] = typ
	t.byType[typ] = info
	return info, nil
}

// Decode reads a fixed-size payload.
func Decode[T any](b []byte, order binary.ByteOrder) (T, error) {
	var v T
	if _, err := binary.Decode(b, order, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

// Encode writes a fixed-size payload into b.
func Encode[T any](b []byte, order binary.ByteOrder, v T) error {
	if _, err := binary.Encode(b, order, v); err != nil {
		return fmt.Errorf("encode %T: %w", v, err)
	}
	return nil
}
