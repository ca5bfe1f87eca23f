// Package bot implements the root bot: the turn router that decides
// whether an inbound activity is handled locally or forwarded to the
// skill bot currently attached to the conversation.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillhost/activity"
	"github.com/BaSui01/skillhost/internal/metrics"
	"github.com/BaSui01/skillhost/skill"
	"github.com/BaSui01/skillhost/state"
)

// skillKeyword is the trigger word that hands a conversation over to the
// target skill. Matched case-sensitively as a substring of the message
// text.
const skillKeyword = "skill"

// RootBot routes conversation turns. While a conversation has an active
// skill, every activity except EndOfConversation is forwarded to that
// skill verbatim; otherwise the bot answers locally.
type RootBot struct {
	appID         string
	targetSkillID string
	registry      *skill.Registry
	client        skill.Client
	state         *state.Manager
	callbackURL   string
	logger        *zap.Logger
	metrics       *metrics.Collector
}

// Config collects the dependencies of a RootBot.
type Config struct {
	// AppID is the identity the host presents to skills.
	AppID string
	// TargetSkillID is the skill the keyword hands conversations to.
	TargetSkillID string
	// CallbackURL is the endpoint skills post their replies to.
	CallbackURL string
	// Registry holds the known skills.
	Registry *skill.Registry
	// Client is the transport used to reach skills.
	Client skill.Client
	// State is the per-conversation session accessor.
	State *state.Manager
	// Logger is the structured logger. Defaults to a no-op logger.
	Logger *zap.Logger
	// Metrics is the metrics collector. Defaults to an unregistered one.
	Metrics *metrics.Collector
}

// NewRootBot creates a root bot. The target skill must be present in the
// registry.
func NewRootBot(cfg Config) (*RootBot, error) {
	if cfg.Registry == nil || cfg.Client == nil || cfg.State == nil {
		return nil, fmt.Errorf("bot: registry, client and state are required")
	}
	if !cfg.Registry.Has(cfg.TargetSkillID) {
		return nil, fmt.Errorf("bot: target skill %q is not registered", cfg.TargetSkillID)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewCollector("skillhost", nil, nil)
	}

	return &RootBot{
		appID:         cfg.AppID,
		targetSkillID: cfg.TargetSkillID,
		registry:      cfg.Registry,
		client:        cfg.Client,
		state:         cfg.State,
		callbackURL:   cfg.CallbackURL,
		logger:        logger.With(zap.String("component", "root_bot")),
		metrics:       collector,
	}, nil
}

// OnTurn processes one inbound activity. Replies are queued on the turn
// context; state and transport errors fail the turn and propagate to the
// caller.
func (b *RootBot) OnTurn(ctx context.Context, tc *TurnContext) error {
	act := tc.Activity
	if err := act.Validate(); err != nil {
		return err
	}

	// Forward all activities except EndOfConversation to the active skill.
	if !act.IsEndOfConversation() {
		activeSkillID, err := b.state.ActiveSkill(ctx, tc.ConversationID())
		if err != nil {
			return err
		}
		if activeSkillID != "" {
			target, err := b.registry.Get(activeSkillID)
			if err != nil {
				return err
			}
			b.metrics.RecordTurn(string(act.Type), "skill")
			return b.sendToSkill(ctx, tc, target)
		}
	}

	b.metrics.RecordTurn(string(act.Type), "local")

	switch act.Type {
	case activity.ActivityTypeMessage:
		return b.onMessage(ctx, tc)
	case activity.ActivityTypeEndOfConversation:
		return b.onEndOfConversation(ctx, tc)
	case activity.ActivityTypeConversationUpdate:
		return b.onMembersAdded(ctx, tc)
	default:
		b.logger.Debug("ignoring activity",
			zap.String("activity_type", string(act.Type)),
			zap.String("conversation_id", tc.ConversationID()))
		return nil
	}
}

// onMessage answers a message turn. The keyword hands the conversation
// to the target skill; anything else gets the default reply.
func (b *RootBot) onMessage(ctx context.Context, tc *TurnContext) error {
	if strings.Contains(tc.Activity.Text, skillKeyword) {
		tc.SendText("Got it, connecting you to the skill...")

		if err := b.state.SetActiveSkill(ctx, tc.ConversationID(), b.targetSkillID); err != nil {
			return err
		}
		b.metrics.SkillSessionStarted()

		target, err := b.registry.Get(b.targetSkillID)
		if err != nil {
			return err
		}
		return b.sendToSkill(ctx, tc, target)
	}

	tc.SendText(`Me no nothin'. Say "skill" and I'll patch you through`)
	return nil
}

// onEndOfConversation hands the conversation back to the root bot. The
// skill's parting code, text and value are echoed to the user when set.
func (b *RootBot) onEndOfConversation(ctx context.Context, tc *TurnContext) error {
	activeSkillID, err := b.state.ActiveSkill(ctx, tc.ConversationID())
	if err != nil {
		return err
	}

	if err := b.state.ClearActiveSkill(ctx, tc.ConversationID()); err != nil {
		return err
	}
	if activeSkillID != "" {
		b.metrics.SkillSessionEnded()
		b.logger.Info("skill conversation ended",
			zap.String("conversation_id", tc.ConversationID()),
			zap.String("skill_id", activeSkillID),
			zap.String("code", tc.Activity.Code))
	}

	tc.SendText(endOfConversationSummary(tc.Activity))
	tc.SendText(`Back in the root bot. Say "skill" and I'll patch you through`)

	if err := b.state.SaveChanges(ctx, tc.ConversationID(), true); err != nil {
		return err
	}
	b.metrics.RecordStateSave(true)
	return nil
}

// endOfConversationSummary renders the skill's parting details. Code,
// text and value each appear only when the skill supplied them.
func endOfConversationSummary(act *activity.Activity) string {
	var sb strings.Builder
	sb.WriteString("Received endOfConversation.")
	if act.Code != "" {
		fmt.Fprintf(&sb, "\n\nCode: %s", act.Code)
	}
	if act.Text != "" {
		fmt.Fprintf(&sb, "\n\nText: %s", act.Text)
	}
	if act.Value != nil {
		fmt.Fprintf(&sb, "\n\nValue: %v", act.Value)
	}
	return sb.String()
}

// onMembersAdded greets every member joining the conversation except the
// bot itself.
func (b *RootBot) onMembersAdded(ctx context.Context, tc *TurnContext) error {
	for _, member := range tc.Activity.MembersAdded {
		if member.ID != tc.Activity.Recipient.ID {
			tc.SendText("Hello and welcome!")
		}
	}
	return nil
}

// sendToSkill forwards the turn's activity to the target skill. State is
// always saved before the transport call so anything the skill does with
// the conversation sees current state.
func (b *RootBot) sendToSkill(ctx context.Context, tc *TurnContext, target *skill.Descriptor) error {
	if err := b.state.SaveChanges(ctx, tc.ConversationID(), true); err != nil {
		return err
	}
	b.metrics.RecordStateSave(true)

	start := time.Now()
	err := b.client.PostActivity(ctx, b.appID, target, b.callbackURL, tc.Activity)
	if err != nil {
		b.metrics.RecordSkillForward(target.ID, "error", time.Since(start))
		b.logger.Error("skill forward failed",
			zap.String("conversation_id", tc.ConversationID()),
			zap.String("skill_id", target.ID),
			zap.Error(err))
		return err
	}

	b.metrics.RecordSkillForward(target.ID, "success", time.Since(start))
	b.logger.Debug("activity forwarded",
		zap.String("conversation_id", tc.ConversationID()),
		zap.String("skill_id", target.ID),
		zap.String("activity_type", string(tc.Activity.Type)))
	return nil
}

// TargetSkillID returns the skill the keyword routes conversations to.
func (b *RootBot) TargetSkillID() string {
	return b.targetSkillID
}
