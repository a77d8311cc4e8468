package jobs

import f "github.com/soffa-projects/matchqueue/core"

// Transition returns the state a claimed record moves to once its handler
// reported outcome. attempts already counts the current claim.
//
//	succeeded                      -> COMPLETED
//	failed, attempts < maxAttempts -> PENDING (claimable again)
//	failed, attempts >= maxAttempts -> FAILED
func Transition(attempts int, maxAttempts int, outcome f.Outcome) f.JobState {
	if outcome == f.OutcomeSucceeded {
		return f.StateCompleted
	}
	if attempts >= maxAttempts {
		return f.StateFailed
	}
	return f.StatePending
}
