package system

// Phase defines execution ordering within a single Advance.
type Phase int

const (
	PhaseDispatch  Phase = iota // 0: materialize new descriptors
	PhaseReconcile              // 1: rebind handles to the new generation
	PhaseRelease                // 2: free the previous generation
	PhaseRecord                 // 3: journal the tick
	PhaseNotify                 // 4: deliver tick events
)

func (p Phase) String() string {
	switch p {
	case PhaseDispatch:
		return "dispatch"
	case PhaseReconcile:
		return "reconcile"
	case PhaseRelease:
		return "release"
	case PhaseRecord:
		return "record"
	case PhaseNotify:
		return "notify"
	}
	return "unknown"
}

// System is one step of the tick pipeline. T carries the per-tick state the
// steps share.
type System[T any] interface {
	Phase() Phase
	Run(tick T) error
}

// Func adapts a function to a System.
type Func[T any] struct {
	P  Phase
	Fn func(tick T) error
}

func (f Func[T]) Phase() Phase     { return f.P }
func (f Func[T]) Run(tick T) error { return f.Fn(tick) }
