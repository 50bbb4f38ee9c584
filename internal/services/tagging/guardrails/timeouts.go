// Package guardrails holds cross cutting safety helpers for the tagging pipeline
package guardrails

import (
	"context"
	"time"

	"hntrends/internal/services/tagging/domain"
)

// Timeouts is an optional budget bundle for one run.
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Mirror caps copying one corpus into the workspace
	Mirror time.Duration

	// Index caps building one corpus' full-text index
	Index time.Duration

	// Match caps the whole parallel match phase
	Match time.Duration

	// Sync caps the fact table replacement transaction
	Sync time.Duration
}

// For returns the budget configured for stage (zero when none)
func (t Timeouts) For(stage domain.Stage) time.Duration {
	switch stage {
	case domain.StageMirror:
		return t.Mirror
	case domain.StageIndex:
		return t.Index
	case domain.StageMatch:
		return t.Match
	case domain.StageSync:
		return t.Sync
	}
	return 0
}

// ForStage returns a sub context for stage bounded by its budget and any remaining parent budget
func ForStage(parent context.Context, t Timeouts, stage domain.Stage) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.For(stage))
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		d := time.Until(dl)
		if d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout chooses the tighter of the requested duration and any parent remainder.
// Never extends the parent deadline
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
