package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/slok/taskd/internal/log"
)

// NotifierConfig is the configuration for the webhook notifier.
type NotifierConfig struct {
	// TriggerURL is the external backend endpoint that starts task execution.
	TriggerURL string
	Client     *http.Client
	Logger     log.Logger
}

func (c *NotifierConfig) defaults() error {
	if c.TriggerURL == "" {
		return fmt.Errorf("trigger url is required")
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "dispatch.Webhook"})
	return nil
}

// Notifier is a webhook implementation of dispatch.Notifier.
type Notifier struct {
	triggerURL string
	client     *http.Client
	logger     log.Logger
}

// NewNotifier creates a new webhook notifier.
func NewNotifier(cfg NotifierConfig) (*Notifier, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Notifier{
		triggerURL: cfg.TriggerURL,
		client:     cfg.Client,
		logger:     cfg.Logger,
	}, nil
}

type triggerRequest struct {
	TaskID string `json:"taskId"`
}

// Notify posts the task ID to the external trigger endpoint. The response
// body is discarded, only the status code matters.
func (n *Notifier) Notify(ctx context.Context, taskID string) error {
	body, err := json.Marshal(triggerRequest{TaskID: taskID})
	if err != nil {
		return fmt.Errorf("could not marshal trigger request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.triggerURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not call trigger endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("trigger endpoint returned status %d", resp.StatusCode)
	}

	n.logger.Debugf("Dispatched task %s (trigger status %d)", taskID, resp.StatusCode)
	return nil
}
