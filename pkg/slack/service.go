package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// Service handles Slack notification delivery for the daemon's
// best-effort notification sink (spec.md §4.4 failure semantics).
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// Notify posts a notification, threading onto an existing message when
// fingerprint matches one sent within the last 24 hours (e.g. a repeat
// Executor failure for the same subject). Fail-open: errors are logged,
// never returned.
func (s *Service) Notify(ctx context.Context, title, body, priority, fingerprint string) {
	if s == nil {
		return
	}

	var threadTS string
	if fingerprint != "" {
		var err error
		threadTS, err = s.client.FindMessageByFingerprint(ctx, fingerprint)
		if err != nil {
			s.logger.Warn("failed to find existing Slack thread", "fingerprint", fingerprint, "error", err)
		}
	}

	blocks := BuildNotificationMessage(title, body, priority, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 5*time.Second); err != nil {
		s.logger.Error("failed to send Slack notification", "title", title, "error", err)
	}
}
