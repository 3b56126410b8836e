package scan

import "context"

// State is a step in the per-object dispatch FSM.
type State int

// States and their transitions.
//
// Each state is implemented by a stateFunc in its own file.
const (
	// Terminal halts the FSM for the current object and returns to the
	// enclosing frame.
	Terminal State = iota
	// Identify classifies the object by its leading bytes and checks the
	// whitelist.
	// Transitions: Unpack, Match, Terminal
	Identify
	// Unpack checks the shared bounds and runs the family's Unpacker. Every
	// sub-object the Unpacker emits is handed to Recurse as it's produced.
	// Transitions: Match
	Unpack
	// Recurse is entered once per sub-object, from within Unpack: it reserves
	// the object against the shared bounds, spools it, and dispatches it at
	// depth+1. It's not reachable through the FSM loop.
	Recurse
	// Match runs the heuristics and the compiled matcher against the object's
	// bytes.
	// Transitions: Terminal
	Match
	// Aggregate maps the outcome of the whole walk to a Result. It runs once,
	// after the top-level object reaches Terminal.
	Aggregate
)

func (s State) String() string {
	names := [...]string{
		"Terminal",
		"Identify",
		"Unpack",
		"Recurse",
		"Match",
		"Aggregate",
	}
	if s < 0 || int(s) >= len(names) {
		return "???"
	}
	return names[s]
}

// StateFunc implements one State for one object.
//
// Returning an error ends the walk: either a detection (errFound) or an abort
// (*scancore.Error).
type stateFunc func(context.Context, *frame) (State, error)

var stateToStateFunc = map[State]stateFunc{
	Identify: identify,
	Unpack:   unpackObject,
	Match:    match,
}
