// Package agent implements the HTTP client used to invoke external agent
// services. Agents are opaque collaborators reachable through the fixed JSON
// wire protocol; one invocation performs exactly one POST.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rundex/agentrelay/catalog"
	"github.com/rundex/agentrelay/core"
	"github.com/rundex/agentrelay/logging"
	"github.com/rundex/agentrelay/metrics"
)

// Publisher receives the Started/Completed lifecycle events of an
// invocation. A non-nil error from the publisher (closed or overflowing
// event channel) aborts the invocation.
type Publisher func(ev core.Event) error

// Options configures the agent client.
type Options struct {
	// HTTPClient performs the requests. Defaults to a dedicated client; the
	// per-call timeout is applied via context, not on the client itself.
	HTTPClient *http.Client

	// Timeout bounds each individual agent call. Independent of any overall
	// session deadline. Defaults to 30s.
	Timeout time.Duration

	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Recorder defaults to NoOpRecorder.
	Recorder metrics.Recorder
}

// Client invokes external agent services. It is stateless apart from its
// HTTP client and safe for concurrent use.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     logging.Logger
	recorder   metrics.Recorder
}

// New constructs a Client with optional overrides.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		HTTPClient: &http.Client{},
		Timeout:    30 * time.Second,
		Logger:     logging.NoOpLogger{},
		Recorder:   metrics.NoOpRecorder{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
		recorder:   opts.Recorder,
	}
}

// Invoke sends the query to the agent described by d and returns the reply
// content. It publishes AgentCallStarted before the POST and exactly one
// AgentCallCompleted afterwards, on failure carrying the degraded inline
// error string so the event stream stays balanced. Failures never abort
// sibling calls; the caller receives an AgentInvocationError and decides how
// to fold it into the composed answer. There is no automatic retry.
func (c *Client) Invoke(ctx context.Context, d catalog.Descriptor, query, senderID, conversationID string, publish Publisher) (string, error) {
	if publish == nil {
		publish = func(core.Event) error { return nil }
	}

	if err := publish(core.AgentCallStarted{AgentID: d.ID, Query: query}); err != nil {
		return "", err
	}

	start := time.Now()
	content, callErr := c.post(ctx, d, query, senderID, conversationID)
	dur := time.Since(start)

	c.recorder.ObserveAgentCall(d.ID, callErr == nil, dur)
	c.logger.Info("agent.call.completed",
		"agent_id", d.ID,
		"duration_ms", dur.Milliseconds(),
		"error", callErr != nil,
	)

	completed := core.AgentCallCompleted{AgentID: d.ID, Response: content}
	if callErr != nil {
		invErr := &core.AgentInvocationError{AgentID: d.ID, Cause: callErr}
		completed.Response = fmt.Sprintf("Error calling agent %s: %v", d.ID, callErr)
		completed.Error = invErr.Error()
		if err := publish(completed); err != nil {
			return "", err
		}
		return "", invErr
	}

	if err := publish(completed); err != nil {
		return "", err
	}
	return content, nil
}

// post performs the single HTTP round trip of an invocation.
func (c *Client) post(ctx context.Context, d catalog.Descriptor, query, senderID, conversationID string) (string, error) {
	msg := core.NewMessage(conversationID, senderID, d.ID, query)

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, d.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a bounded prefix for the error detail; agents are not trusted
		// to return small bodies.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(detail))
	}

	var reply core.Message
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("malformed agent response: %w", err)
	}
	if reply.Content == "" {
		return "", fmt.Errorf("agent response missing content")
	}
	return reply.Content, nil
}
