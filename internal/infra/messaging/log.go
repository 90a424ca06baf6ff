package messaging

import (
	"context"

	"go.uber.org/zap"
)

// Log only writes messages to the logger. It is the default transport for
// local runs where no provider is configured.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a log-only messenger.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

// SendWhatsApp logs the message.
func (l *Log) SendWhatsApp(_ context.Context, phone, text string) error {
	if err := requirePhone(phone); err != nil {
		return err
	}
	l.logger.Info("messenger: whatsapp", zap.String("to", phone), zap.String("text", text))
	return nil
}

// SendSMS logs the message.
func (l *Log) SendSMS(_ context.Context, phone, text string) error {
	if err := requirePhone(phone); err != nil {
		return err
	}
	l.logger.Info("messenger: sms", zap.String("to", phone), zap.String("text", text))
	return nil
}
