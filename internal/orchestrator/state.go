package orchestrator

import "fmt"

// State is a step of the per-type validation cycle. States are entered in
// declaration order.
type State int

const (
	StateLoadExisting State = iota
	StateValidateExisting
	StatePruneDead
	StateFetchSources
	StateFairRotate
	StateMerge
	StateFlush
	StateDone
)

func (s State) String() string {
	switch s {
	case StateLoadExisting:
		return "LOAD_EXISTING"
	case StateValidateExisting:
		return "VALIDATE_EXISTING"
	case StatePruneDead:
		return "PRUNE_DEAD_FROM_STORE"
	case StateFetchSources:
		return "FETCH_SOURCES"
	case StateFairRotate:
		return "FAIR_ROTATE_VALIDATE"
	case StateMerge:
		return "MERGE"
	case StateFlush:
		return "FLUSH"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type TypeReport struct {
	Type string

	ExistingLoaded  int
	SkippedDead     int
	ExistingChecked int
	ExistingAlive   int
	PrunedFromStore int

	Sources  int
	Fetched  int
	Rounds   int
	NewAlive int
	Total    int

	Reached     State
	Interrupted bool
}

type Report struct {
	Types       []TypeReport
	DeadTracked int
	Interrupted bool
}

// Type returns the report of proxy type t, if that type was started.
func (r Report) Type(t string) (TypeReport, bool) {
	for _, tr := range r.Types {
		if tr.Type == t {
			return tr, true
		}
	}
	return TypeReport{}, false
}
