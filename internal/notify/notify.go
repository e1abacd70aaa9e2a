// Package notify turns signup events into email confirmation links.
// Delivery is left to whatever collects the logs.
package notify

import (
	"context"
	"net/url"
	"strings"

	"github.com/cinevault/apiserver/internal/mq"
	"github.com/cinevault/apiserver/internal/services"
	"go.uber.org/zap"
)

// ConfirmationNotifier handles user.registered events.
type ConfirmationNotifier struct {
	baseURL string
	logger  *zap.Logger
}

func NewConfirmationNotifier(baseURL string, logger *zap.Logger) *ConfirmationNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfirmationNotifier{baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Link returns the confirmation URL for token.
func (n *ConfirmationNotifier) Link(token string) string {
	return n.baseURL + "/auth/confirm-email?token=" + url.QueryEscape(token)
}

// Handle is an mq.Handler. Unusable messages are logged and acked.
func (n *ConfirmationNotifier) Handle(_ context.Context, msg mq.Message) error {
	var payload services.UserRegistered
	event, err := mq.DecodeEvent(msg, &payload)
	if err != nil {
		n.logger.Warn("dropping malformed event", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if event.Type != services.EventUserRegistered {
		n.logger.Debug("ignoring event", zap.String("type", event.Type))
		return nil
	}
	if payload.ConfirmToken == "" || payload.Email == "" {
		n.logger.Warn("dropping event without email or token", zap.String("message_id", msg.ID))
		return nil
	}

	n.logger.Info("email confirmation pending",
		zap.String("user_id", payload.UserID),
		zap.String("email", payload.Email),
		zap.String("link", n.Link(payload.ConfirmToken)),
		zap.Time("expires_at", payload.ExpiresAt),
	)
	return nil
}
