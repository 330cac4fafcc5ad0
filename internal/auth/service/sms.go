package service

import (
	"context"
	"log/slog"

	"github.com/lanternauth/lantern/pkg/slogx"
)

// SmsSender delivers one-time sign in codes to a phone number.
type SmsSender interface {
	SendSms(ctx context.Context, number, message string) error
}

// LogSmsSender writes messages to the log instead of a carrier. It stands in
// for a real gateway in development and test environments.
type LogSmsSender struct {
	Logger *slog.Logger
}

func (s *LogSmsSender) SendSms(ctx context.Context, number, message string) error {
	logger := s.Logger
	if logger == nil {
		logger = slogx.FromContext(ctx)
	}
	logger.Info("sms dispatched",
		slog.String("number", number),
		slog.String("message", message),
	)
	return nil
}
