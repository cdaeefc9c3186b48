package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/NordCoder/pingboard/internal/domain/notification"
)

var errSlackDisabled = errors.New("slack disabled")

type Slack struct {
	webhook string
	client  *http.Client
}

// NewSlack returns nil when no webhook is configured.
func NewSlack(webhook string, client *http.Client) *Slack {
	if webhook == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Slack{webhook: webhook, client: client}
}

type slackPayload struct {
	Text string `json:"text"`
}

func (s *Slack) RequestPermission(context.Context) notification.Permission {
	if s == nil || s.webhook == "" {
		return notification.Unsupported
	}
	return notification.Granted
}

func (s *Slack) Notify(ctx context.Context, title, body string) error {
	if s == nil || s.webhook == "" {
		return errSlackDisabled
	}
	payload, err := json.Marshal(slackPayload{Text: "*" + title + "*\n" + body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhook, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack: unexpected status %d", resp.StatusCode)
	}
	return nil
}
