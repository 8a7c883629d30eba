package agent

import "github.com/southflowpeak/pin/pkg/types"

// transitions enumerates every legal (from, command) -> to edge. A
// command not present for the current state is rejected with
// ErrInvalidTransition — this table is the single source of truth for
// what's legal, rather than scattering state checks across handlers.
var transitions = map[types.AgentState]map[string]types.AgentState{
	types.StateIdle: {
		"pin": types.StateMirroring,
	},
	types.StateMirroring: {
		"hoverHide": types.StateMirrorHidden,
		"unpin":     types.StateIdle,
		"fault":     types.StateError,
	},
	types.StateMirrorHidden: {
		"hoverShow": types.StateMirroring,
		"unpin":     types.StateIdle,
		"fault":     types.StateError,
	},
	types.StateError: {
		"reset": types.StateIdle,
	},
}

// ValidStates lists every AgentState the machine recognizes, so a
// caller iterating over states doesn't need to hardcode the list
// alongside the type's own constants.
var ValidStates = []types.AgentState{
	types.StateIdle,
	types.StateMirroring,
	types.StateMirrorHidden,
	types.StateError,
}

// next returns the state reached by applying cmd from from, and
// whether that edge is legal. "unpin" and "panic" are idempotent by
// policy in Agent.Unpin and Agent.Panic, not in this table: calling unpin while already
// Idle succeeds without an edge here.
func next(from types.AgentState, cmd string) (types.AgentState, bool) {
	edges, ok := transitions[from]
	if !ok {
		return from, false
	}
	to, ok := edges[cmd]
	return to, ok
}
