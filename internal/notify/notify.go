// Package notify delivers best-effort order notifications.
package notify

import (
	"context"
	"errors"
)

// Notifier announces a committed order. Callers log failures; they never roll back.
type Notifier interface {
	Notify(ctx context.Context, userID, orderID string) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }

// Multi notifies every member and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, userID, orderID string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, userID, orderID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
