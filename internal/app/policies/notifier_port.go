package policies

import "context"

// Notifier is fire-and-forget; callers log its errors and carry on.
type Notifier interface {
	Send(ctx context.Context, to string, template string, data any) error
}
