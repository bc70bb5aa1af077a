package telemetry

import (
	"context"

	"github.com/google/uuid"
)

type turnIDKey struct{}

// NewTurnID returns a fresh identifier for one REPL turn.
func NewTurnID() string { return "turn-" + uuid.NewString() }

// WithTurnID returns a child context carrying id. A nil ctx is treated as
// context.Background().
func WithTurnID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, turnIDKey{}, id)
}

// TurnIDFromContext returns the turn ID carried by ctx. Empty IDs read as
// absent.
func TurnIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(turnIDKey{}).(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
