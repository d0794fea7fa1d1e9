// Package notify delivers the end-of-run announcement of newly verified incidents.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"
)

const (
	DefaultSubject = "Verified Fire Incidents - Latest Batch"
	DefaultBody    = "Please find attached the latest verified fire incidents (Excel and JSON)."
)

// Notification is one announcement. Attachments are file paths.
type Notification struct {
	Subject     string
	Body        string
	Attachments []string
	Records     []domain.VerifiedRecord
}

// New builds the standard notification for records with the given artifacts attached.
func New(records []domain.VerifiedRecord, attachments ...string) Notification {
	return Notification{
		Subject:     DefaultSubject,
		Body:        DefaultBody,
		Attachments: attachments,
		Records:     records,
	}
}

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for i, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
