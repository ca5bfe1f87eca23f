package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/skillhost/activity"
	"github.com/BaSui01/skillhost/skill"
	"github.com/BaSui01/skillhost/state"
)

// callLog records the order of state saves and skill posts across the
// bot's collaborators.
type callLog struct {
	mu     sync.Mutex
	events []string
}

func (l *callLog) add(event string) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// loggingStore is a state.Store that records save calls.
type loggingStore struct {
	*state.MemoryStore
	log *callLog
}

func (s *loggingStore) SaveSession(ctx context.Context, session *state.Session) error {
	s.log.add("save")
	return s.MemoryStore.SaveSession(ctx, session)
}

// fakeClient is a skill.Client that records posted activities.
type fakeClient struct {
	log    *callLog
	err    error
	posted []*activity.Activity
	target *skill.Descriptor
}

func (c *fakeClient) PostActivity(ctx context.Context, fromBotID string, target *skill.Descriptor, callbackURL string, act *activity.Activity) error {
	c.log.add("post")
	if c.err != nil {
		return c.err
	}
	c.posted = append(c.posted, act)
	c.target = target
	return nil
}

type fixture struct {
	bot    *RootBot
	client *fakeClient
	state  *state.Manager
	log    *callLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := &callLog{}
	store := &loggingStore{MemoryStore: state.NewMemoryStore(), log: log}
	mgr := state.NewManager(store, zaptest.NewLogger(t))

	registry, err := skill.NewRegistry([]skill.Descriptor{
		{ID: "EchoSkillBot", AppID: "skill-app-id", Endpoint: "http://localhost:39783/api/messages"},
	})
	require.NoError(t, err)

	client := &fakeClient{log: log}

	b, err := NewRootBot(Config{
		AppID:         "root-app-id",
		TargetSkillID: "EchoSkillBot",
		CallbackURL:   "http://localhost:3978/api/skills",
		Registry:      registry,
		Client:        client,
		State:         mgr,
		Logger:        zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	return &fixture{bot: b, client: client, state: mgr, log: log}
}

func messageTurn(text string) *TurnContext {
	act := activity.NewMessageActivity("conv-1", text)
	act.From = activity.ChannelAccount{ID: "user-1", Role: "user"}
	act.Recipient = activity.ChannelAccount{ID: "root-bot", Role: "bot"}
	return NewTurnContext(act)
}

func replyTexts(tc *TurnContext) []string {
	var texts []string
	for _, act := range tc.Responses() {
		texts = append(texts, act.Text)
	}
	return texts
}

func TestRootBot_KeywordStartsSkill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tc := messageTurn("I want to talk to the skill please")
	require.NoError(t, f.bot.OnTurn(ctx, tc))

	assert.Equal(t, []string{"Got it, connecting you to the skill..."}, replyTexts(tc))

	// The inbound activity was forwarded untouched.
	require.Len(t, f.client.posted, 1)
	assert.Equal(t, tc.Activity.ID, f.client.posted[0].ID)
	assert.Equal(t, "EchoSkillBot", f.client.target.ID)

	// The conversation is now routed to the skill.
	activeID, err := f.state.ActiveSkill(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "EchoSkillBot", activeID)
}

func TestRootBot_SaveAlwaysPrecedesPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bot.OnTurn(ctx, messageTurn("skill")))
	require.NoError(t, f.bot.OnTurn(ctx, messageTurn("more input")))

	events := f.log.all()
	require.Len(t, events, 4)
	assert.Equal(t, []string{"save", "post", "save", "post"}, events)
}

func TestRootBot_NonKeywordMessage(t *testing.T) {
	f := newFixture(t)

	tc := messageTurn("hello there")
	require.NoError(t, f.bot.OnTurn(context.Background(), tc))

	assert.Equal(t, []string{`Me no nothin'. Say "skill" and I'll patch you through`}, replyTexts(tc))
	assert.Empty(t, f.client.posted)
}

func TestRootBot_KeywordIsCaseSensitive(t *testing.T) {
	f := newFixture(t)

	tc := messageTurn("SKILL")
	require.NoError(t, f.bot.OnTurn(context.Background(), tc))

	assert.Equal(t, []string{`Me no nothin'. Say "skill" and I'll patch you through`}, replyTexts(tc))
	assert.Empty(t, f.client.posted)
}

func TestRootBot_ActiveSkillGetsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bot.OnTurn(ctx, messageTurn("skill")))

	// A message with no keyword is still forwarded, with no local reply.
	tc := messageTurn("what is the weather")
	require.NoError(t, f.bot.OnTurn(ctx, tc))
	assert.Empty(t, tc.Responses())
	require.Len(t, f.client.posted, 2)
	assert.Equal(t, "what is the weather", f.client.posted[1].Text)

	// Non-message types are forwarded too.
	eventAct := activity.NewActivity(activity.ActivityTypeEvent, "conv-1")
	eventTC := NewTurnContext(eventAct)
	require.NoError(t, f.bot.OnTurn(ctx, eventTC))
	assert.Len(t, f.client.posted, 3)
}

func TestRootBot_EndOfConversationReturnsToRoot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bot.OnTurn(ctx, messageTurn("skill")))

	eoc := activity.NewEndOfConversationActivity("conv-1", "completedSuccessfully")
	tc := NewTurnContext(eoc)
	require.NoError(t, f.bot.OnTurn(ctx, tc))

	texts := replyTexts(tc)
	require.Len(t, texts, 2)
	assert.Equal(t, "Received endOfConversation.\n\nCode: completedSuccessfully", texts[0])
	assert.Equal(t, `Back in the root bot. Say "skill" and I'll patch you through`, texts[1])

	activeID, err := f.state.ActiveSkill(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, activeID)

	// The next message is handled locally again.
	next := messageTurn("hello")
	require.NoError(t, f.bot.OnTurn(ctx, next))
	assert.Equal(t, []string{`Me no nothin'. Say "skill" and I'll patch you through`}, replyTexts(next))
}

func TestRootBot_EndOfConversationWhileIdle(t *testing.T) {
	f := newFixture(t)

	eoc := activity.NewEndOfConversationActivity("conv-1", "")
	tc := NewTurnContext(eoc)
	require.NoError(t, f.bot.OnTurn(context.Background(), tc))

	texts := replyTexts(tc)
	require.Len(t, texts, 2)
	assert.Equal(t, "Received endOfConversation.", texts[0])
	assert.Empty(t, f.client.posted)
}

func TestEndOfConversationSummary(t *testing.T) {
	tests := []struct {
		name string
		act  *activity.Activity
		want string
	}{
		{
			name: "bare",
			act:  activity.NewEndOfConversationActivity("conv-1", ""),
			want: "Received endOfConversation.",
		},
		{
			name: "code only",
			act:  activity.NewEndOfConversationActivity("conv-1", "userCancelled"),
			want: "Received endOfConversation.\n\nCode: userCancelled",
		},
		{
			name: "code and text",
			act: func() *activity.Activity {
				a := activity.NewEndOfConversationActivity("conv-1", "completedSuccessfully")
				a.Text = "bye"
				return a
			}(),
			want: "Received endOfConversation.\n\nCode: completedSuccessfully\n\nText: bye",
		},
		{
			name: "value",
			act: func() *activity.Activity {
				a := activity.NewEndOfConversationActivity("conv-1", "")
				a.Value = "42"
				return a
			}(),
			want: "Received endOfConversation.\n\nValue: 42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, endOfConversationSummary(tt.act))
		})
	}
}

func TestRootBot_MembersAdded(t *testing.T) {
	f := newFixture(t)

	act := activity.NewActivity(activity.ActivityTypeConversationUpdate, "conv-1")
	act.Recipient = activity.ChannelAccount{ID: "root-bot", Role: "bot"}
	act.MembersAdded = []activity.ChannelAccount{
		{ID: "root-bot", Role: "bot"}, // the bot itself, no greeting
		{ID: "user-1", Role: "user"},
		{ID: "user-2", Role: "user"},
	}

	tc := NewTurnContext(act)
	require.NoError(t, f.bot.OnTurn(context.Background(), tc))

	assert.Equal(t, []string{"Hello and welcome!", "Hello and welcome!"}, replyTexts(tc))
}

func TestRootBot_ForwardErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.client.err = errors.New("connection refused")

	err := f.bot.OnTurn(context.Background(), messageTurn("skill"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")
}

func TestRootBot_UnknownTypeIgnored(t *testing.T) {
	f := newFixture(t)

	act := activity.NewActivity(activity.ActivityTypeTyping, "conv-1")
	tc := NewTurnContext(act)
	require.NoError(t, f.bot.OnTurn(context.Background(), tc))

	assert.Empty(t, tc.Responses())
	assert.Empty(t, f.client.posted)
}

func TestNewRootBot_Validation(t *testing.T) {
	registry, err := skill.NewRegistry([]skill.Descriptor{
		{ID: "EchoSkillBot", AppID: "a", Endpoint: "http://x/api/messages"},
	})
	require.NoError(t, err)

	mgr := state.NewManager(state.NewMemoryStore(), nil)

	_, err = NewRootBot(Config{
		AppID:         "root",
		TargetSkillID: "NoSuchSkill",
		Registry:      registry,
		Client:        &fakeClient{log: &callLog{}},
		State:         mgr,
	})
	assert.ErrorContains(t, err, "not registered")

	_, err = NewRootBot(Config{AppID: "root", TargetSkillID: "EchoSkillBot"})
	assert.Error(t, err)
}
