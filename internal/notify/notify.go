// Package notify implements the outbound side-effect sinks the surface
// fires when a notification or alert arrives: webhook POST and email.
// Every sink is fire-and-forget from the engine's perspective; failures are
// logged and swallowed.
package notify

import "context"

// Sink sends one operator-facing message to an external channel.
type Sink interface {
	Notify(ctx context.Context, title, body string) error
}
