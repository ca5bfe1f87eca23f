package skill

import "errors"

// Descriptor validation errors.
var (
	// ErrMissingSkillID indicates a descriptor without an ID.
	ErrMissingSkillID = errors.New("skill: missing id")
	// ErrMissingAppID indicates a descriptor without an app ID.
	ErrMissingAppID = errors.New("skill: missing app id")
	// ErrMissingEndpoint indicates a descriptor without an endpoint URL.
	ErrMissingEndpoint = errors.New("skill: missing endpoint")
	// ErrDuplicateSkill indicates two descriptors share an ID.
	ErrDuplicateSkill = errors.New("skill: duplicate id")
)

// Transport errors.
var (
	// ErrSkillNotFound indicates the requested skill is not registered.
	ErrSkillNotFound = errors.New("skill: not found")
	// ErrSkillUnavailable indicates the remote skill could not be reached
	// or answered with an error status.
	ErrSkillUnavailable = errors.New("skill: remote unavailable")
	// ErrInvalidForward indicates the activity to forward is invalid.
	ErrInvalidForward = errors.New("skill: invalid activity")
)
