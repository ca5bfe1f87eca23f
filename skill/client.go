package skill

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BaSui01/skillhost/activity"
)

// Client defines the transport used to deliver activities to skill bots.
type Client interface {
	// PostActivity delivers an activity to the target skill. The activity
	// is stamped with the host callback URL so the skill knows where to
	// post its replies.
	PostActivity(ctx context.Context, fromBotID string, target *Descriptor, callbackURL string, act *activity.Activity) error
}

// ClientConfig holds configuration for the skill HTTP client.
type ClientConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// RetryCount is the number of retries for failed requests.
	RetryCount int
	// RetryDelay is the delay between retries.
	RetryDelay time.Duration
	// Headers are additional headers to include in every request.
	Headers map[string]string
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:    30 * time.Second,
		RetryCount: 3,
		RetryDelay: 1 * time.Second,
		Headers:    make(map[string]string),
	}
}

// HTTPClient is the default implementation of Client using HTTP.
type HTTPClient struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTPClient with the given configuration.
func NewHTTPClient(config *ClientConfig) *HTTPClient {
	if config == nil {
		config = DefaultClientConfig()
	}

	return &HTTPClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// PostActivity delivers the activity to target.Endpoint as JSON. The
// caller's app ID travels in the X-Skill-Caller-App-ID header and the
// activity's ServiceURL is set to the host callback endpoint before
// serialization. Accepts 200, 201 and 202 responses.
func (c *HTTPClient) PostActivity(ctx context.Context, fromBotID string, target *Descriptor, callbackURL string, act *activity.Activity) error {
	if act == nil {
		return fmt.Errorf("%w: nil activity", ErrInvalidForward)
	}
	if err := act.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidForward, err)
	}
	if target == nil {
		return ErrSkillNotFound
	}

	// The skill replies to ServiceURL, so it must point back at the host
	// before the activity leaves the process. The caller's copy is not
	// mutated.
	outbound := act.Clone()
	outbound.ServiceURL = callbackURL

	body, err := outbound.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize activity: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Skill-Caller-App-ID", fromBotID)
		for k, v := range c.config.Headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			resp.Body.Close()
			return nil
		default:
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d, body: %s", resp.StatusCode, string(respBody))
			// Client errors will not succeed on retry.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return fmt.Errorf("%w: skill %s: %v", ErrSkillUnavailable, target.ID, lastErr)
			}
		}
	}

	return fmt.Errorf("%w: skill %s: %v", ErrSkillUnavailable, target.ID, lastErr)
}

// SetHeader sets a custom header for all requests.
func (c *HTTPClient) SetHeader(key, value string) {
	c.config.Headers[key] = value
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
