package icogen

// State is a step of a generation job.
type State int

const (
	Idle State = iota
	Validating
	Preparing
	Generating
	Encoding
	Compressing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Preparing:
		return "preparing"
	case Generating:
		return "generating"
	case Encoding:
		return "encoding"
	case Compressing:
		return "compressing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}
