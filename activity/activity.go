// Package activity defines the JSON activity envelope exchanged between
// the channel, the root bot host, and skill bots.
package activity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActivityType represents the type of an activity.
type ActivityType string

const (
	// ActivityTypeMessage represents a user or bot message.
	ActivityTypeMessage ActivityType = "message"
	// ActivityTypeEndOfConversation signals that a skill has finished and
	// control returns to the root bot.
	ActivityTypeEndOfConversation ActivityType = "endOfConversation"
	// ActivityTypeConversationUpdate signals membership changes in a conversation.
	ActivityTypeConversationUpdate ActivityType = "conversationUpdate"
	// ActivityTypeEvent represents an application-defined event.
	ActivityTypeEvent ActivityType = "event"
	// ActivityTypeTyping represents a typing indicator.
	ActivityTypeTyping ActivityType = "typing"
)

// IsValid checks whether the activity type is one of the known types.
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityTypeMessage, ActivityTypeEndOfConversation,
		ActivityTypeConversationUpdate, ActivityTypeEvent, ActivityTypeTyping:
		return true
	default:
		return false
	}
}

// String returns the string representation of the activity type.
func (t ActivityType) String() string {
	return string(t)
}

// ChannelAccount identifies a participant in a conversation.
type ChannelAccount struct {
	// ID is the channel-scoped identifier of the account.
	ID string `json:"id"`
	// Name is the display name of the account.
	Name string `json:"name,omitempty"`
	// Role is "user" or "bot".
	Role string `json:"role,omitempty"`
}

// ConversationAccount identifies the conversation an activity belongs to.
type ConversationAccount struct {
	// ID is the unique identifier of the conversation.
	ID string `json:"id"`
}

// Activity is the message envelope passed between channel, root bot, and skills.
type Activity struct {
	// ID is the unique identifier of this activity.
	ID string `json:"id"`
	// Type indicates the activity type (message, endOfConversation, ...).
	Type ActivityType `json:"type"`
	// Timestamp is when the activity was created.
	Timestamp time.Time `json:"timestamp"`
	// ChannelID identifies the channel the activity arrived on.
	ChannelID string `json:"channel_id,omitempty"`
	// ServiceURL is the endpoint replies for this activity should be posted to.
	ServiceURL string `json:"service_url,omitempty"`
	// From is the sender of the activity.
	From ChannelAccount `json:"from"`
	// Recipient is the intended receiver of the activity.
	Recipient ChannelAccount `json:"recipient"`
	// Conversation is the conversation this activity belongs to.
	Conversation ConversationAccount `json:"conversation"`
	// MembersAdded lists accounts added to the conversation (conversationUpdate).
	MembersAdded []ChannelAccount `json:"members_added,omitempty"`
	// Text is the message text (message activities).
	Text string `json:"text,omitempty"`
	// Code is the completion code (endOfConversation activities).
	Code string `json:"code,omitempty"`
	// Value carries an optional structured payload.
	Value any `json:"value,omitempty"`
	// ReplyToID is the ID of the activity this one replies to.
	ReplyToID string `json:"reply_to_id,omitempty"`
}

// NewActivity creates a new Activity with a generated ID and current timestamp.
func NewActivity(actType ActivityType, conversationID string) *Activity {
	return &Activity{
		ID:           uuid.New().String(),
		Type:         actType,
		Timestamp:    time.Now().UTC(),
		Conversation: ConversationAccount{ID: conversationID},
	}
}

// NewMessageActivity creates a new message activity with the given text.
func NewMessageActivity(conversationID, text string) *Activity {
	act := NewActivity(ActivityTypeMessage, conversationID)
	act.Text = text
	return act
}

// NewEndOfConversationActivity creates a new endOfConversation activity.
func NewEndOfConversationActivity(conversationID, code string) *Activity {
	act := NewActivity(ActivityTypeEndOfConversation, conversationID)
	act.Code = code
	return act
}

// Validate checks that the activity has all required fields and valid values.
func (a *Activity) Validate() error {
	if a.ID == "" {
		return ErrActivityMissingID
	}
	if !a.Type.IsValid() {
		return ErrActivityInvalidType
	}
	if a.Conversation.ID == "" {
		return ErrActivityMissingConversation
	}
	if a.Timestamp.IsZero() {
		return ErrActivityMissingTimestamp
	}
	return nil
}

// IsMessage checks whether this is a message activity.
func (a *Activity) IsMessage() bool {
	return a.Type == ActivityTypeMessage
}

// IsEndOfConversation checks whether this is an endOfConversation activity.
func (a *Activity) IsEndOfConversation() bool {
	return a.Type == ActivityTypeEndOfConversation
}

// CreateReply creates an activity of the given type addressed back to the
// sender of this activity, within the same conversation.
func (a *Activity) CreateReply(actType ActivityType) *Activity {
	return &Activity{
		ID:           uuid.New().String(),
		Type:         actType,
		Timestamp:    time.Now().UTC(),
		ChannelID:    a.ChannelID,
		ServiceURL:   a.ServiceURL,
		From:         a.Recipient,
		Recipient:    a.From,
		Conversation: a.Conversation,
		ReplyToID:    a.ID,
	}
}

// CreateTextReply creates a message reply with the given text.
func (a *Activity) CreateTextReply(text string) *Activity {
	reply := a.CreateReply(ActivityTypeMessage)
	reply.Text = text
	return reply
}

// Clone creates a deep copy of the activity.
func (a *Activity) Clone() *Activity {
	clone := *a
	if a.MembersAdded != nil {
		clone.MembersAdded = make([]ChannelAccount, len(a.MembersAdded))
		copy(clone.MembersAdded, a.MembersAdded)
	}
	if a.Value != nil {
		data, err := json.Marshal(a.Value)
		if err == nil {
			var value any
			if err := json.Unmarshal(data, &value); err == nil {
				clone.Value = value
			}
		}
	}
	return &clone
}

// ToJSON serializes the activity to JSON bytes.
func (a *Activity) ToJSON() ([]byte, error) {
	return json.Marshal(a)
}

// FromJSON parses an activity from JSON bytes without validating it.
func FromJSON(data []byte) (*Activity, error) {
	var act Activity
	if err := json.Unmarshal(data, &act); err != nil {
		return nil, err
	}
	return &act, nil
}

// ParseActivity parses JSON data into an Activity and validates it.
func ParseActivity(data []byte) (*Activity, error) {
	act, err := FromJSON(data)
	if err != nil {
		return nil, ErrInvalidActivity
	}
	if err := act.Validate(); err != nil {
		return nil, err
	}
	return act, nil
}
