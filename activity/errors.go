package activity

import (
	"errors"
	"fmt"
)

// ErrInvalidActivity is the base error for every malformed activity,
// whether it failed to decode or failed validation.
var ErrInvalidActivity = errors.New("activity: invalid")

// Validation errors. All wrap ErrInvalidActivity.
var (
	// ErrActivityMissingID indicates the activity is missing an ID.
	ErrActivityMissingID = fmt.Errorf("%w: missing id", ErrInvalidActivity)
	// ErrActivityInvalidType indicates the activity has an unknown type.
	ErrActivityInvalidType = fmt.Errorf("%w: unknown type", ErrInvalidActivity)
	// ErrActivityMissingConversation indicates the activity is missing a conversation ID.
	ErrActivityMissingConversation = fmt.Errorf("%w: missing conversation id", ErrInvalidActivity)
	// ErrActivityMissingTimestamp indicates the activity is missing a timestamp.
	ErrActivityMissingTimestamp = fmt.Errorf("%w: missing timestamp", ErrInvalidActivity)
)
