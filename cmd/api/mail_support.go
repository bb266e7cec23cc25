package main

import (
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/gdlux-auth/internal/config"
	"github.com/yourusername/gdlux-auth/internal/mail"
	"github.com/yourusername/gdlux-auth/internal/otp"
)

// setupOTPStore はRedis接続を開いてOTP保留ストアを作成します。
func setupOTPStore(cfg *config.Config) (*otp.Store, error) {
	opt, err := redis.ParseURL(cfg.QueueRedisURL)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(opt)
	ttlMinutes := cfg.OTPExpireMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 10
	}
	return otp.NewStore(redisClient, time.Duration(ttlMinutes)*time.Minute), nil
}

// setupMail はOTPメール配送マネージャーを作成します。
// SMTP未設定のdebugモードではログ出力のSenderに差し替えます。
func setupMail(cfg *config.Config) (*mail.Manager, error) {
	var sender mail.Sender
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(cfg)
	} else {
		sender = mail.NewLogSender(log.Default())
	}
	return mail.NewManager(cfg, sender, log.Default())
}
