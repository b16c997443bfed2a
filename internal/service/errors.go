package service

import (
	"errors"
	"fmt"
)

// Error categories. Every error a service returns to a caller wraps exactly
// one of these, so the API layer can map it without knowing the details.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
)

// --- Error Definitions ---
var (
	ErrClientNotFound     = fmt.Errorf("%w: client not found", ErrNotFound)
	ErrTrainerNotFound    = fmt.Errorf("%w: trainer not found", ErrNotFound)
	ErrPlanNotFound       = fmt.Errorf("%w: training plan not found", ErrNotFound)
	ErrWorkoutLogNotFound = fmt.Errorf("%w: workout log not found", ErrNotFound)

	ErrPlanAccessDenied = fmt.Errorf("%w: plan belongs to another trainer", ErrForbidden)
	ErrClientNotManaged = fmt.Errorf("%w: client is not managed by this trainer", ErrForbidden)
	ErrLogAccessDenied  = fmt.Errorf("%w: workout log belongs to another trainer's client", ErrForbidden)

	ErrWeekNotCompleted         = fmt.Errorf("%w: current week is not completed yet", ErrInvalidState)
	ErrNextPlanNotAssigned      = fmt.Errorf("%w: trainer has not assigned the next week yet", ErrInvalidState)
	ErrWorkoutDateOutsideWindow = fmt.Errorf("%w: workout date is outside the allowed logging window", ErrInvalidState)
	ErrRestDay                  = fmt.Errorf("%w: workout log is a rest day", ErrInvalidState)
	ErrCurrentPlanChanged       = fmt.Errorf("%w: current plan changed concurrently, retry", ErrInvalidState)
	ErrWeighInExists            = fmt.Errorf("%w: weigh-in already recorded for this day", ErrInvalidState)
	ErrClientWithoutTrainer     = fmt.Errorf("%w: client has no trainer", ErrInvalidState)
	ErrClientAlreadyAssigned    = fmt.Errorf("%w: client is already assigned to a trainer", ErrInvalidState)
	ErrMissedSweepRunning       = fmt.Errorf("%w: missed-workout sweep in progress, retry", ErrInvalidState)

	ErrInvalidAmount = fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	ErrInvalidPlan   = fmt.Errorf("%w: invalid training plan", ErrInvalidInput)
	ErrClientNotRole = fmt.Errorf("%w: user found but is not a client", ErrInvalidInput)
)

// invalidInput wraps a free-form validation message in the InvalidInput category.
func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
