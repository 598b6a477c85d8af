// Package notify implements the Executor's best-effort notification
// sink (spec.md §4.4 failure semantics), fanning each notification out
// to a Slack channel and to the dashboard WebSocket hub.
//
// Grounded on the teacher's pkg/slack.Service (nil-safe, fail-open
// delivery: errors are logged, never returned to the caller) composed
// with pkg/events for the dashboard leg.
package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/events"
	"github.com/codeready-toolchain/sysdaemon/pkg/slack"
)

// Sink implements executor.Notifier: it fans a single notification out
// to every enabled channel. Both legs are best-effort — a missing or
// failing Slack integration never blocks dashboard delivery and
// vice versa.
type Sink struct {
	slack *slack.Service
	hub   *events.Hub
}

// New builds a Sink from NotifyConfig. The Slack leg is nil (a no-op)
// when the config disables it or the token env var is unset, matching
// the teacher's Service nil-safety.
func New(cfg config.NotifyConfig, tokenEnv func(string) string, dashboardURL string, hub *events.Hub) *Sink {
	var svc *slack.Service
	if cfg.SlackEnabled {
		token := tokenEnv(cfg.SlackTokenEnv)
		svc = slack.NewService(slack.ServiceConfig{
			Token:        token,
			Channel:      cfg.SlackChannel,
			DashboardURL: dashboardURL,
		})
	}
	return &Sink{slack: svc, hub: hub}
}

// Notify implements executor.Notifier. Both legs are best-effort: a
// missing or failing Slack integration never blocks dashboard delivery
// and vice versa.
func (s *Sink) Notify(ctx context.Context, title, body string, priority string) {
	fingerprint := notificationFingerprint(title, body)
	s.slack.Notify(ctx, title, body, priority, fingerprint)
	s.notifyDashboard(title, body, priority)
}

func (s *Sink) notifyDashboard(title, body, priority string) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(events.Event{
		Type: "notification",
		Payload: map[string]string{
			"title":    title,
			"body":     body,
			"priority": priority,
		},
		Timestamp: time.Now(),
	})
}

// notificationFingerprint lets a repeated notification for the same
// title thread onto its prior Slack message rather than posting a new
// top-level message each time.
func notificationFingerprint(title, body string) string {
	sum := sha256.Sum256([]byte(title + "|" + body))
	return hex.EncodeToString(sum[:])
}
