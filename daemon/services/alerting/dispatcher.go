package alerting

import (
	"fmt"
	"strings"

	"github.com/nicholas-fedor/shoutrrr"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// StopFunc is invoked for an action://stop channel on a firing alert, the
// one controller operation an alert rule is allowed to trigger directly.
type StopFunc func()

// Dispatcher sends alert notifications via configured channels.
type Dispatcher struct {
	stop StopFunc
}

// NewDispatcher creates a new alert notification dispatcher. stop may be
// nil if no rule should be allowed to trigger an automatic process stop.
func NewDispatcher(stop StopFunc) *Dispatcher {
	return &Dispatcher{stop: stop}
}

// Dispatch sends an alert event to all channels configured on the rule.
func (d *Dispatcher) Dispatch(rule dto.AlertRule, event dto.AlertEvent) {
	message := d.formatMessage(event)

	for _, channel := range rule.Channels {
		if err := d.sendToChannel(channel, message, event); err != nil {
			logger.Error("Alerting: Failed to dispatch to channel %s for rule %s: %v",
				channelType(channel), rule.ID, err)
		}
	}
}

// sendToChannel sends a message to a single channel.
func (d *Dispatcher) sendToChannel(channel, message string, event dto.AlertEvent) error {
	if channel == "action://stop" {
		if event.State != "firing" {
			return nil
		}
		return d.executeStop()
	}

	// Everything else is a shoutrrr URL (ntfy, gotify, discord, slack, webhook, etc.)
	return d.sendViaShoutrrr(channel, message)
}

// sendViaShoutrrr sends a notification via shoutrrr URL.
func (d *Dispatcher) sendViaShoutrrr(url, message string) error {
	err := shoutrrr.Send(url, message)
	if err != nil {
		return fmt.Errorf("shoutrrr error: %w", err)
	}
	return nil
}

// executeStop triggers an emergency process stop, the alert-rule equivalent
// of the user pressing the physical stop button.
func (d *Dispatcher) executeStop() error {
	if d.stop == nil {
		return fmt.Errorf("action://stop channel configured but no stop handler wired")
	}
	logger.Info("Alerting: action://stop triggered, stopping process")
	d.stop()
	return nil
}

// formatMessage creates a human-readable notification message.
func (d *Dispatcher) formatMessage(event dto.AlertEvent) string {
	var sb strings.Builder

	if event.State == "firing" {
		sb.WriteString(fmt.Sprintf("ALERT [%s]: %s\n", strings.ToUpper(event.Severity), event.RuleName))
	} else {
		sb.WriteString(fmt.Sprintf("RESOLVED: %s\n", event.RuleName))
	}

	sb.WriteString(event.Message)
	sb.WriteString(fmt.Sprintf("\nTime: %s", event.FiredAt.Format("2006-01-02 15:04:05")))

	if event.State == "resolved" && !event.ResolvedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("\nResolved: %s", event.ResolvedAt.Format("2006-01-02 15:04:05")))
	}

	return sb.String()
}

// channelType returns a display-friendly name for a channel URL.
func channelType(ch string) string {
	if ch == "action://stop" {
		return "action"
	}
	if before, _, ok := strings.Cut(ch, "://"); ok {
		return before
	}
	return "unknown"
}
