// Package notify tells outside systems about newly published aggregates.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sujalbistaa/retroboard/internal/models"
)

// Notification is the payload delivered to every destination. The vibe
// image itself is not included.
type Notification struct {
	Event       string           `json:"event"`
	Summary     string           `json:"summary"`
	Sentiment   models.Sentiment `json:"sentiment"`
	HasImage    bool             `json:"hasImage"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// AggregatePublished builds the notification for a published aggregate.
func AggregatePublished(r models.AggregateResult) *Notification {
	return &Notification{
		Event:       "aggregate.published",
		Summary:     r.Summary,
		Sentiment:   r.Sentiment,
		HasImage:    r.HasImage(),
		GeneratedAt: r.GeneratedAt,
	}
}

// Notifier delivers notifications to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a manager. Nil notifiers are skipped.
func NewManager(notifiers ...Notifier) *Manager {
	m := &Manager{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends n to every notifier and joins their errors.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
