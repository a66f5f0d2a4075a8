package service

import (
	"context"
	"testing"

	"github.com/robosms/twilio-sms-service/internal/domain"
	"github.com/robosms/twilio-sms-service/internal/twilio"
)

func newTestRouter(client *fakeClient) *Router {
	cfg := baseConfig()
	send := NewSendHandler(cfg, client, nil, discardLogger())
	history := NewHistoryQuery(cfg, client, nil, discardLogger())
	return NewRouter(send, history)
}

func TestDispatch_MissingDiscriminator(t *testing.T) {
	t.Parallel()

	r := newTestRouter(&fakeClient{})

	res, err := r.Dispatch(context.Background(), map[string]any{"to": "+15551234567"})
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if res.Status != domain.StatusError || res.Error != "command is required" {
		t.Fatalf("expected {status:error, error:%q}, got %+v", "command is required", res)
	}
}

func TestDispatch_UnknownDiscriminatorIsRejected(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	r := newTestRouter(client)

	res, err := r.Dispatch(context.Background(), map[string]any{"command": "explode"})
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if res.Status != domain.StatusError {
		t.Fatalf("expected error result, got %+v", res)
	}
	if client.sentCount() != 0 || client.listCount() != 0 {
		t.Fatalf("expected no handler activity for unknown command")
	}
}

func TestDispatch_SendScenario(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	r := newTestRouter(client)

	res, err := r.Dispatch(context.Background(), map[string]any{
		"command": "send",
		"to":      "+15551234567",
		"body":    "hello",
	})
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if res.Status != domain.StatusSent {
		t.Fatalf("expected status sent, got %+v", res)
	}
	if client.sentCount() != 1 {
		t.Fatalf("expected exactly one vendor send call, got %d", client.sentCount())
	}
}

func TestDispatch_GetScenario(t *testing.T) {
	t.Parallel()

	client := &fakeClient{listMsgs: []twilio.Message{
		{SID: "SM3", Body: "a", DateSent: "Tue, 10 Feb 2026 19:55:01 +0000"},
		{SID: "SM2", Body: "b", DateSent: "Mon, 09 Feb 2026 10:00:00 +0000"},
	}}
	r := newTestRouter(client)

	res, err := r.Dispatch(context.Background(), map[string]any{
		"command": "get",
		"number":  float64(2),
	})
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if res.Status != domain.StatusRetrieved {
		t.Fatalf("expected status retrieved, got %+v", res)
	}
	if len(res.Messages) > 2 {
		t.Fatalf("expected at most 2 records, got %d", len(res.Messages))
	}
}

func TestDispatch_MalformedFieldIsStructuredError(t *testing.T) {
	t.Parallel()

	r := newTestRouter(&fakeClient{})

	res, err := r.Dispatch(context.Background(), map[string]any{
		"command":    "get",
		"time_start": "not a timestamp",
	})
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if res.Status != domain.StatusError {
		t.Fatalf("expected structured error result, got %+v", res)
	}
}
