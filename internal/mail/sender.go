// Package mail はOTP通知メールの非同期配送を提供します。
package mail

import (
	"context"
	"fmt"
	"log"

	gomail "github.com/wneessen/go-mail"

	"github.com/yourusername/gdlux-auth/internal/config"
)

// Sender はOTPメールを1通配送します。
type Sender interface {
	SendOTP(ctx context.Context, to, fullname, code string) error
}

// SMTPSender はSMTP経由でメールを送信するSenderです。
type SMTPSender struct {
	cfg *config.Config
}

// NewSMTPSender は SMTPSender を作成します。
func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// SendOTP は確認コードを記載したテキストメールを送信します。
func (s *SMTPSender) SendOTP(ctx context.Context, to, fullname, code string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject("Your G&D LUX Verification OTP")
	msg.SetBodyString(gomail.TypeTextPlain, fmt.Sprintf(
		"Hello %s,\n\nYour OTP is %s\n\nPlease verify within %d minutes.\n",
		fullname, code, s.cfg.OTPExpireMinutes))

	client, err := gomail.NewClient(s.cfg.SMTPHost,
		gomail.WithPort(s.cfg.SMTPPort),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.SMTPUsername),
		gomail.WithPassword(s.cfg.SMTPPassword),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	defer client.Close()

	return client.DialAndSendWithContext(ctx, msg)
}

// LogSender はSMTP未設定のdebugモードで使う代替Senderです。
// コード本体はログに残しません。
type LogSender struct {
	logger *log.Logger
}

// NewLogSender は LogSender を作成します。
func NewLogSender(logger *log.Logger) *LogSender {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSender{logger: logger}
}

// SendOTP は送信の代わりに宛先だけをログに出力します。
func (s *LogSender) SendOTP(ctx context.Context, to, fullname, code string) error {
	s.logger.Printf("smtp not configured: otp mail for %s skipped", to)
	return nil
}
