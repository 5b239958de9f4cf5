package notify

import "context"

// Notifier delivers a best-effort message to a user. Failures are for the
// caller to log, never to act on.
type Notifier interface {
	Notify(ctx context.Context, userID, subject, body string) error
}

// AddressBook resolves a user id to a deliverable address. The user identity
// store lives upstream; this is the one thing we need from it here.
type AddressBook interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}

// NopNotifier drops every notification. Used when no mail settings are
// configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string, string) error { return nil }
