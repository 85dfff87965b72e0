package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestWebhookPostsPayload(t *testing.T) {
	var received Message
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/notifications" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	userID := uuid.New()
	w := NewWebhook(WebhookConfig{Endpoint: ts.URL, Token: "secret"})
	if err := w.Send(context.Background(), userID, "Points awarded", "You earned 50 points."); err != nil {
		t.Fatalf("send: %v", err)
	}
	if received.UserID != userID || received.Title != "Points awarded" {
		t.Fatalf("unexpected payload: %+v", received)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
}

func TestWebhookReportsDeliveryFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	w := NewWebhook(WebhookConfig{Endpoint: ts.URL})
	if err := w.Send(context.Background(), uuid.New(), "t", "m"); err == nil {
		t.Fatalf("expected delivery error")
	}
}

func TestRecorderCollectsMessages(t *testing.T) {
	r := &Recorder{}
	userID := uuid.New()
	if err := r.Send(context.Background(), userID, "a", "b"); err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs := r.Messages()
	if len(msgs) != 1 || msgs[0].UserID != userID {
		t.Fatalf("unexpected messages: %v", msgs)
	}
}
