package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextDraftKey ctxKey = "draftID"

func DraftIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if draftID, ok := ctx.Value(ContextDraftKey).(string); ok {
		return draftID
	}
	return ""
}

func ContextWithDraftID(ctx context.Context, draftID string) context.Context {
	return context.WithValue(ctx, ContextDraftKey, draftID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
