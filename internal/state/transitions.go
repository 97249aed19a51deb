package state

// validTransitions contains the permitted forward, back and rollback moves.
// Re-prompting keeps the current state and is always allowed.
var validTransitions = map[State][]State{
	StateIdle: {
		StateAwaitingService,
	},
	StateAwaitingService: {
		StateAwaitingDate,
	},
	StateAwaitingDate: {
		StateAwaitingTime,
		StateAwaitingService,
	},
	StateAwaitingTime: {
		StateAwaitingMaster,
		StateAwaitingDate,
	},
	StateAwaitingMaster: {
		StateAwaitingName,
		StateAwaitingTime,
	},
	StateAwaitingName: {
		StateAwaitingPhone,
		StateAwaitingMaster,
	},
	StateAwaitingPhone: {
		StateAwaitingName,
		// a rejected submission rolls back to slot selection
		StateAwaitingTime,
		StateAwaitingDate,
	},
}

var previousState = map[State]State{
	StateAwaitingService: StateIdle,
	StateAwaitingDate:    StateAwaitingService,
	StateAwaitingTime:    StateAwaitingDate,
	StateAwaitingMaster:  StateAwaitingTime,
	StateAwaitingName:    StateAwaitingMaster,
	StateAwaitingPhone:   StateAwaitingName,
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if to == StateIdle || from == to {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}

// Previous returns the state a back action leads to.
func Previous(from State) State {
	if prev, ok := previousState[from]; ok {
		return prev
	}
	return StateIdle
}
