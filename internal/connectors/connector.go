// Package connectors defines the external-service interfaces the
// scheduler drives each cycle. Real integrations (Gmail, Odoo, social
// publishers) implement these; unconfigured services fall back to
// no-op connectors so a cycle never stalls on missing credentials.
package connectors

import "context"

// Connector is the base contract every integration satisfies.
type Connector interface {
	// Name returns the connector identifier, e.g. "gmail" or "odoo".
	Name() string

	// Configured reports whether the connector has credentials and is
	// expected to do real work.
	Configured() bool
}

// Inbound pulls new items from an external service into the vault
// Inbox.
type Inbound interface {
	Connector

	// CheckNew fetches new items and returns how many task files were
	// created.
	CheckNew(ctx context.Context) (int, error)
}

// SyncStats summarizes a bidirectional sync pass.
type SyncStats struct {
	Pushed int `json:"pushed"`
	Pulled int `json:"pulled"`
}

// Outbound synchronizes vault state with an external system of record.
type Outbound interface {
	Connector

	// Sync pushes local changes out and pulls remote changes in.
	Sync(ctx context.Context) (SyncStats, error)
}

// Publisher drains a queue of approved outgoing items (posts,
// messages) to an external channel.
type Publisher interface {
	Connector

	// ProcessQueue publishes everything ready to go and returns the
	// number of items sent.
	ProcessQueue(ctx context.Context) (int, error)
}

// Notifier delivers operator alerts, e.g. error-rate escalations.
type Notifier interface {
	Connector

	// SendAlert delivers one alert message.
	SendAlert(ctx context.Context, subject, body string) error
}
