package bot

import (
	"github.com/BaSui01/skillhost/activity"
)

// TurnContext carries one inbound activity through a turn and collects
// the replies the bot produces. It is not safe for concurrent use; each
// turn gets its own context.
type TurnContext struct {
	// Activity is the inbound activity being processed.
	Activity *activity.Activity

	replies []*activity.Activity
}

// NewTurnContext creates a turn context for the given inbound activity.
func NewTurnContext(act *activity.Activity) *TurnContext {
	return &TurnContext{Activity: act}
}

// SendActivity queues a reply activity for delivery at the end of the turn.
func (tc *TurnContext) SendActivity(act *activity.Activity) {
	tc.replies = append(tc.replies, act)
}

// SendText queues a plain text message reply addressed back at the sender
// of the inbound activity.
func (tc *TurnContext) SendText(text string) {
	tc.replies = append(tc.replies, tc.Activity.CreateTextReply(text))
}

// Responses returns the replies queued so far, in send order.
func (tc *TurnContext) Responses() []*activity.Activity {
	return tc.replies
}

// ConversationID returns the ID of the conversation the turn belongs to.
func (tc *TurnContext) ConversationID() string {
	return tc.Activity.Conversation.ID
}
