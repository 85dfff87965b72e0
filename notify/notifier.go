// Package notify delivers user-facing messages as a side effect of
// state transitions. Delivery is best-effort: a failed send is logged
// and counted but never rolls back the transition that triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notifier is the outbound message contract consumed by the services.
type Notifier interface {
	Send(ctx context.Context, userID uuid.UUID, title, message string) error
}

// Message is the delivery payload posted to the notification endpoint.
type Message struct {
	UserID  uuid.UUID `json:"user_id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// WebhookConfig configures the HTTP notifier.
type WebhookConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Webhook posts notification payloads to an external delivery service.
type Webhook struct {
	endpoint string
	token    string
	http     *http.Client
	now      func() time.Time
}

// NewWebhook constructs an HTTP notifier with sane defaults.
func NewWebhook(cfg WebhookConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		http:     &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

// Send implements Notifier by posting the message to the configured
// endpoint.
func (w *Webhook) Send(ctx context.Context, userID uuid.UUID, title, message string) error {
	if w == nil || w.endpoint == "" {
		return fmt.Errorf("notify: webhook endpoint not configured")
	}
	payload := Message{UserID: userID, Title: title, Message: message, SentAt: w.now().UTC()}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint+"/notifications", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notify: delivery endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Recorder is an in-memory Notifier used by tests. It is safe for
// concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Send implements Notifier by recording the message.
func (r *Recorder) Send(_ context.Context, userID uuid.UUID, title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{UserID: userID, Title: title, Message: message, SentAt: time.Now().UTC()})
	return nil
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
