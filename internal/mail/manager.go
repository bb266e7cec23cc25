package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/yourusername/gdlux-auth/internal/config"
)

const (
	taskTypeOTP = "mail:otp"
	queueName   = "mail"
)

// Manager はOTPメールのキュー投入とワーカー実行を担います。
type Manager struct {
	cfg    *config.Config
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	sender Sender
	logger *log.Logger
}

// TaskPayload はOTPメール配送ジョブのペイロードです。
type TaskPayload struct {
	To       string `json:"to"`
	FullName string `json:"fullname"`
	Code     string `json:"code"`
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, sender Sender, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if sender == nil {
		return nil, errors.New("sender is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:    cfg,
		client: client,
		server: server,
		mux:    mux,
		sender: sender,
		logger: logger,
	}
	mux.HandleFunc(taskTypeOTP, manager.handleOTPTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			if m.logger != nil {
				m.logger.Printf("asynq server stopped with error: %v", err)
			} else {
				log.Printf("asynq server stopped with error: %v", err)
			}
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// Schedule はOTPメール配送ジョブをキューに投入します。
func (m *Manager) Schedule(ctx context.Context, to, fullname, code string) error {
	if to == "" {
		return fmt.Errorf("recipient is required")
	}

	body, err := json.Marshal(&TaskPayload{
		To:       to,
		FullName: fullname,
		Code:     code,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskTypeOTP, body, asynq.Queue(queueName))
	_, err = m.client.EnqueueContext(ctx, task, asynq.MaxRetry(1))
	return err
}

func (m *Manager) handleOTPTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	if payload.To == "" {
		return fmt.Errorf("missing recipient in payload")
	}

	if err := m.sender.SendOTP(ctx, payload.To, payload.FullName, payload.Code); err != nil {
		if m.logger != nil {
			m.logger.Printf("failed to send otp mail to %s: %v", payload.To, err)
		}
		return err
	}
	return nil
}
