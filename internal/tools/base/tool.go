package base

import "context"

// Tool defines the interface that all bot commands must implement.
type Tool interface {
	// Name returns the command name, without the leading slash.
	Name() string
	// Description returns a short explanation shown in the command menu.
	Description() string
	// Execute runs the command with everything after the command name and
	// returns the reply text.
	Execute(ctx context.Context, input string) (string, error)
}

// Acknowledger is implemented by tools that take long enough that the user
// should get an immediate reply before Execute finishes.
type Acknowledger interface {
	Ack(input string) (string, bool)
}
