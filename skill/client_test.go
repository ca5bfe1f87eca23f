package skill

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/skillhost/activity"
)

func testActivity() *activity.Activity {
	act := activity.NewMessageActivity("conv-1", "let's try the skill")
	act.From = activity.ChannelAccount{ID: "user-1", Role: "user"}
	act.Recipient = activity.ChannelAccount{ID: "bot-1", Role: "bot"}
	return act
}

func quickConfig() *ClientConfig {
	cfg := DefaultClientConfig()
	cfg.RetryCount = 2
	cfg.RetryDelay = 10 * time.Millisecond
	return cfg
}

func TestHTTPClient_PostActivity(t *testing.T) {
	var received activity.Activity
	var callerAppID string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerAppID = r.Header.Get("X-Skill-Caller-App-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPClient(quickConfig())
	target := &Descriptor{ID: "EchoSkillBot", AppID: "app-echo", Endpoint: srv.URL}
	act := testActivity()

	err := client.PostActivity(context.Background(), "root-app-id", target, "http://localhost:3978/api/skills", act)
	require.NoError(t, err)

	assert.Equal(t, "root-app-id", callerAppID)
	assert.Equal(t, act.ID, received.ID)
	assert.Equal(t, act.Text, received.Text)
	assert.Equal(t, "http://localhost:3978/api/skills", received.ServiceURL)
	// Caller's copy must stay untouched.
	assert.Empty(t, act.ServiceURL)
}

func TestHTTPClient_PostActivity_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewHTTPClient(quickConfig())
	target := &Descriptor{ID: "EchoSkillBot", AppID: "app-echo", Endpoint: srv.URL}

	err := client.PostActivity(context.Background(), "root-app-id", target, "http://host/api/skills", testActivity())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_PostActivity_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewHTTPClient(quickConfig())
	target := &Descriptor{ID: "EchoSkillBot", AppID: "app-echo", Endpoint: srv.URL}

	err := client.PostActivity(context.Background(), "root-app-id", target, "http://host/api/skills", testActivity())
	assert.ErrorIs(t, err, ErrSkillUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_PostActivity_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.RetryCount = 10
	cfg.RetryDelay = time.Hour
	client := NewHTTPClient(cfg)
	target := &Descriptor{ID: "EchoSkillBot", AppID: "app-echo", Endpoint: srv.URL}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := client.PostActivity(ctx, "root-app-id", target, "http://host/api/skills", testActivity())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPClient_PostActivity_InvalidInput(t *testing.T) {
	client := NewHTTPClient(nil)
	target := &Descriptor{ID: "EchoSkillBot", AppID: "a", Endpoint: "http://localhost:1/api/messages"}

	err := client.PostActivity(context.Background(), "root-app-id", target, "http://host", nil)
	assert.ErrorIs(t, err, ErrInvalidForward)

	bad := testActivity()
	bad.ID = ""
	err = client.PostActivity(context.Background(), "root-app-id", target, "http://host", bad)
	assert.ErrorIs(t, err, ErrInvalidForward)

	err = client.PostActivity(context.Background(), "root-app-id", nil, "http://host", testActivity())
	assert.ErrorIs(t, err, ErrSkillNotFound)
}
