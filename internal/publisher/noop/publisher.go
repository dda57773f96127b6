// Package noop provides a publisher that discards every message.
package noop

import "context"

// Publisher drops all messages. It is the default when no event sink is
// configured.
type Publisher struct{}

// New returns a noop Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish discards the payload.
func (*Publisher) Publish(context.Context, string, any) (string, error) {
	return "", nil
}
