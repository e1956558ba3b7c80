package domain

// Phase is derived from room state and reported in snapshots
type Phase string

const (
	PhaseLobby     Phase = "LOBBY"     // Waiting for the game master to start
	PhaseAnswering Phase = "ANSWERING" // Submissions open for the current question
	PhaseReviewing Phase = "REVIEWING" // Submissions closed, evaluation and voting
	PhaseConcluded Phase = "CONCLUDED" // Game over, recap available
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// CanTransitionTo checks if a transition from current phase to target phase is valid
func (p Phase) CanTransitionTo(target Phase) bool {
	validTransitions := map[Phase][]Phase{
		PhaseLobby:     {PhaseAnswering, PhaseConcluded},
		PhaseAnswering: {PhaseReviewing, PhaseAnswering, PhaseConcluded},
		PhaseReviewing: {PhaseAnswering, PhaseConcluded},
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}
