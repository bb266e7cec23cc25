package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/yourusername/gdlux-auth/internal/config"
)

type stubSender struct {
	sent []TaskPayload
	err  error
}

func (s *stubSender) SendOTP(ctx context.Context, to, fullname, code string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, TaskPayload{To: to, FullName: fullname, Code: code})
	return nil
}

func newTestManager(t *testing.T, sender Sender) *Manager {
	t.Helper()
	cfg := &config.Config{QueueRedisURL: "redis://127.0.0.1:6379/0"}
	m, err := NewManager(cfg, sender, nil)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	return m
}

func TestHandleOTPTask(t *testing.T) {
	sender := &stubSender{}
	m := newTestManager(t, sender)

	task := asynq.NewTask(taskTypeOTP, []byte(`{"to":"ada@x.com","fullname":"Ada","code":"123456"}`))
	if err := m.handleOTPTask(context.Background(), task); err != nil {
		t.Fatalf("handleOTPTask returned error: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("unexpected send count: %d", len(sender.sent))
	}
	got := sender.sent[0]
	if got.To != "ada@x.com" || got.FullName != "Ada" || got.Code != "123456" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestHandleOTPTaskMissingRecipient(t *testing.T) {
	m := newTestManager(t, &stubSender{})

	task := asynq.NewTask(taskTypeOTP, []byte(`{"fullname":"Ada","code":"123456"}`))
	if err := m.handleOTPTask(context.Background(), task); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestHandleOTPTaskSenderFailure(t *testing.T) {
	m := newTestManager(t, &stubSender{err: errors.New("smtp down")})

	task := asynq.NewTask(taskTypeOTP, []byte(`{"to":"ada@x.com","fullname":"Ada","code":"123456"}`))
	if err := m.handleOTPTask(context.Background(), task); err == nil {
		t.Fatal("expected sender error to propagate for retry")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(nil, &stubSender{}, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	cfg := &config.Config{QueueRedisURL: "redis://127.0.0.1:6379/0"}
	if _, err := NewManager(cfg, nil, nil); err == nil {
		t.Fatal("expected error for nil sender")
	}
	if _, err := NewManager(&config.Config{QueueRedisURL: "://bad"}, &stubSender{}, nil); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}
