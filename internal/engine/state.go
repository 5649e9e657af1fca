package engine

// State is the position of the search in its state machine.
//
//	INIT -> BASELINE -> EVALUATE -> CONFIRM -> (EVALUATE | CONVERGED)
//
// Any fatal error moves the search to FAILED.
type State int32

const (
	StateInit State = iota
	StateBaseline
	StateEvaluate
	StateConfirm
	StateConverged
	StateFailed
)

var stateNames = [...]string{
	StateInit:      "INIT",
	StateBaseline:  "BASELINE",
	StateEvaluate:  "EVALUATE",
	StateConfirm:   "CONFIRM",
	StateConverged: "CONVERGED",
	StateFailed:    "FAILED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether the search has stopped.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateFailed
}
