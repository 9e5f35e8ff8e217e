// Package notification defines the outbound notifier port. Delivery is best
// effort: a failed notification never rolls back the command that emitted
// it.
package notification

import "context"

// Email is an outbound email message.
type Email struct {
	Recipient string
	Subject   string
	Body      string
}

// SMS is an outbound text message.
type SMS struct {
	Recipient string
	Body      string
}

// Notifier is the port consumed by the command engine.
type Notifier interface {
	SendEmail(ctx context.Context, email Email) error
	SendSMS(ctx context.Context, sms SMS) error
}

// Discard drops all notifications. The default when no provider is
// configured and the implementation used by tests.
type Discard struct{}

func (Discard) SendEmail(context.Context, Email) error { return nil }
func (Discard) SendSMS(context.Context, SMS) error     { return nil }
