package domain

import "errors"

// Validation errors: the request itself is malformed and retrying as-is
// will not help.
var (
	ErrNameTooShort     = errors.New("name must be at least 2 characters")
	ErrNameTooLong      = errors.New("name must be at most 50 characters")
	ErrBadQuestionIndex = errors.New("question index out of range")
	ErrBadOption        = errors.New("option is not one of the question's choices")
	ErrBadTimeRemaining = errors.New("time remaining outside the question window")
	ErrBadCapacity      = errors.New("capacity must be between 1 and 1000")
	ErrBadSchedule      = errors.New("schedule must have start before end")
	ErrModeMismatch     = errors.New("quiz mode does not match session mode")
)

// Precondition failures: a store filter did not match the current document.
// The caller may re-read fresh state and retry with updated intent.
var (
	ErrSessionFull         = errors.New("session is full")
	ErrNameTaken           = errors.New("name already taken by an active participant")
	ErrAlreadyAnswered     = errors.New("question already answered")
	ErrWrongStatus         = errors.New("session status does not allow this operation")
	ErrQuestionNotLive     = errors.New("no question is currently live")
	ErrWrongQuestion       = errors.New("submitted index is not the live question")
	ErrAlreadyCompleted    = errors.New("participant already completed")
	ErrNotAllAnswered      = errors.New("participant has unanswered questions")
	ErrParticipantInactive = errors.New("participant is not active")
	ErrNoParticipants      = errors.New("session has no active participants")
	ErrCodeTaken           = errors.New("join code already in use")
	ErrVersionConflict     = errors.New("session was modified concurrently")
)

// Not-found errors.
var (
	ErrSessionNotFound     = errors.New("test session not found")
	ErrParticipantNotFound = errors.New("participant not found in session")
	ErrQuizNotFound        = errors.New("quiz not found")
)

// Schedule violations: the offline window has not opened or has closed.
var (
	ErrNotStartedYet = errors.New("session has not started yet")
	ErrWindowExpired = errors.New("session window has expired")
)

// ErrNotAdmin is returned when a lifecycle control comes from a connection
// other than the session's registered admin.
var ErrNotAdmin = errors.New("only the session admin may perform this operation")

var validationErrs = []error{
	ErrNameTooShort, ErrNameTooLong, ErrBadQuestionIndex, ErrBadOption,
	ErrBadTimeRemaining, ErrBadCapacity, ErrBadSchedule, ErrModeMismatch,
}

var preconditionErrs = []error{
	ErrSessionFull, ErrNameTaken, ErrAlreadyAnswered, ErrWrongStatus,
	ErrQuestionNotLive, ErrWrongQuestion, ErrAlreadyCompleted, ErrNotAllAnswered,
	ErrParticipantInactive, ErrNoParticipants, ErrCodeTaken, ErrVersionConflict,
}

var notFoundErrs = []error{
	ErrSessionNotFound, ErrParticipantNotFound, ErrQuizNotFound,
}

var scheduleErrs = []error{ErrNotStartedYet, ErrWindowExpired}

func isAny(err error, set []error) bool {
	for _, target := range set {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation reports whether err is a malformed-input rejection.
func IsValidation(err error) bool { return isAny(err, validationErrs) }

// IsPrecondition reports whether err means a store filter did not match.
func IsPrecondition(err error) bool { return isAny(err, preconditionErrs) }

// IsNotFound reports whether err is an unknown-code or unknown-name rejection.
func IsNotFound(err error) bool { return isAny(err, notFoundErrs) }

// IsSchedule reports whether err is an out-of-window rejection.
func IsSchedule(err error) bool { return isAny(err, scheduleErrs) }

// IsUnauthorized reports whether err is an admin-authorization rejection.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrNotAdmin) }

// IsRejection reports whether err is any expected, user-facing outcome as
// opposed to an infrastructure failure.
func IsRejection(err error) bool {
	return IsValidation(err) || IsPrecondition(err) || IsNotFound(err) ||
		IsSchedule(err) || IsUnauthorized(err)
}
