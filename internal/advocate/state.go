package advocate

// State is a step of one advocate evaluation
type State int

const (
	StateGatherEvidence State = iota
	StateExpandIfEmpty
	StateScoreWithLLM
	StateParse
	StateRetry
	StateDone
	StateForcedInsufficient
	StateParseError
)

func (s State) String() string {
	switch s {
	case StateGatherEvidence:
		return "gather_evidence"
	case StateExpandIfEmpty:
		return "expand_if_empty"
	case StateScoreWithLLM:
		return "score_with_llm"
	case StateParse:
		return "parse"
	case StateRetry:
		return "retry"
	case StateDone:
		return "done"
	case StateForcedInsufficient:
		return "forced_insufficient"
	case StateParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition follows s
func (s State) Terminal() bool {
	return s == StateDone || s == StateForcedInsufficient || s == StateParseError
}

// Event is one state transition
type Event struct {
	Advocate string
	State    State
	Attempt  int // language model call number, zero before the first call
}

// Observer receives transitions in order. It runs on the evaluating
// goroutine and must not block.
type Observer func(Event)
