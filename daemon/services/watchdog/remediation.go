package watchdog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cskr/pubsub"
	"github.com/nicholas-fedor/shoutrrr"

	"github.com/kdys14/smokehouse-controller/daemon/domain"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// TopicConnAlert is the event-bus topic connectivity failures publish to,
// forwarded to WebSocket clients by the Web API's event pump.
var TopicConnAlert = domain.NewTopic[dto.Alert]("watchdog.conn")

// Remediator executes remediation actions when a connectivity check fails.
type Remediator struct {
	hub *pubsub.PubSub
}

// NewRemediator creates a new Remediator publishing notify actions to hub
// (may be nil).
func NewRemediator(hub *pubsub.PubSub) *Remediator {
	return &Remediator{hub: hub}
}

// Execute runs the remediation action specified in the check's OnFail field.
// Supported actions: "notify", "webhook:<url>".
func (r *Remediator) Execute(ctx context.Context, check dto.ConnCheck, result ProbeResult) error {
	action := check.OnFail
	if action == "" {
		return nil
	}

	switch {
	case action == "notify":
		return r.notify(check, result)
	case strings.HasPrefix(action, "webhook:"):
		url := strings.TrimPrefix(action, "webhook:")
		return r.callWebhook(check, result, url)
	default:
		return fmt.Errorf("unknown remediation action: %s", action)
	}
}

// notify publishes a connectivity Alert onto the event bus.
func (r *Remediator) notify(check dto.ConnCheck, result ProbeResult) error {
	alert := dto.Alert{
		Kind:      dto.AlertKind(fmt.Sprintf("ConnCheck:%s", check.ID)),
		Message:   fmt.Sprintf("Connectivity check '%s' (%s) failed: %s", check.Name, check.Target, result.Error),
		Fatal:     false,
		Timestamp: time.Now(),
	}

	if r.hub != nil {
		domain.Publish(r.hub, TopicConnAlert, alert)
	}

	logger.Info("Watchdog: published conn alert for '%s'", check.Name)
	return nil
}

// callWebhook sends a shoutrrr notification describing the failure.
func (r *Remediator) callWebhook(check dto.ConnCheck, result ProbeResult, url string) error {
	message := fmt.Sprintf("Connectivity check '%s' (%s) failed: %s", check.Name, check.Target, result.Error)
	if err := shoutrrr.Send(url, message); err != nil {
		return fmt.Errorf("webhook send failed: %w", err)
	}

	logger.Info("Watchdog: webhook called for '%s'", check.Name)
	return nil
}
