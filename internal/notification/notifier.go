// Package notification delivers trade and connectivity alerts to
// external channels (Telegram, generic webhooks).
package notification

import (
	"context"
	"fmt"
	"log"

	"quantenginev1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Symbol  string     `json:"symbol,omitempty"`
}

// FromSignal builds an alert describing an emitted trade signal.
func FromSignal(sig model.Signal) Alert {
	msg := fmt.Sprintf("%s at %s (bar %d)", sig.Kind, sig.Price, sig.BarID)
	if !sig.Kind.IsOpen() {
		msg = fmt.Sprintf("%s, realized delta %s", msg, sig.Delta)
	}
	return Alert{
		Level:   AlertInfo,
		Title:   fmt.Sprintf("signal %s %s", sig.Symbol, sig.Kind),
		Message: msg,
		Symbol:  sig.Symbol,
	}
}

// Reconnected builds an alert for a stream recovery event.
func Reconnected(venue string, attempt int) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   fmt.Sprintf("%s stream reconnected", venue),
		Message: fmt.Sprintf("reconnected after %d attempt(s), subscriptions replayed", attempt),
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to several backends, logging per-backend
// failures without failing the whole send.
type Multi struct {
	backends []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	for _, n := range m.backends {
		if err := n.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend %T failed: %v", n, err)
		}
	}
	return nil
}
