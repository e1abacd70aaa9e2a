package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event channels published by the services.
const (
	EventUserRegistered = "user.registered"
	EventImageConfirmed = "movie.image.confirmed"
)

// EventPublisher delivers domain events to a broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, channel string, payload any) error
}

// UserRegistered is published after signup. It carries the email
// confirmation token so a notifier can send the link.
type UserRegistered struct {
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	ConfirmToken string    `json:"confirmToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// ImageConfirmed is published after an upload is recorded.
type ImageConfirmed struct {
	MovieID   string `json:"movieId"`
	ImageID   string `json:"imageId"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	IsPrimary bool   `json:"isPrimary"`
}

// publish sends an event without failing the caller; the write it
// describes has already committed.
func publish(ctx context.Context, events EventPublisher, logger *zap.Logger, channel string, payload any) {
	if events == nil {
		return
	}
	if err := events.PublishEvent(ctx, channel, payload); err != nil {
		logger.Warn("failed to publish event", zap.String("channel", channel), zap.Error(err))
	}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
