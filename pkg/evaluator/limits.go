package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thomasrohde/ember/pkg/value"
)

// DefaultMaxCallDepth bounds nested user function calls.
const DefaultMaxCallDepth = 10000

// Limits holds the resource limits for one evaluation.
type Limits struct {
	// MaxCallDepth is the deepest allowed chain of nested calls. Zero means
	// DefaultMaxCallDepth; a negative value disables the check.
	MaxCallDepth int
	// Timeout bounds the wall-clock time of one evaluation. Zero disables it.
	Timeout time.Duration
}

func (l Limits) maxDepth() int {
	if l.MaxCallDepth == 0 {
		return DefaultMaxCallDepth
	}
	return l.MaxCallDepth
}

// tracker tracks resource consumption during one evaluation.
type tracker struct {
	ctx   context.Context
	start time.Time
	depth int
	calls int64
}

func (ev *Evaluator) checkDeadline(t *tracker) *value.Error {
	select {
	case <-t.ctx.Done():
	default:
		return nil
	}
	if errors.Is(t.ctx.Err(), context.DeadlineExceeded) && ev.limits.Timeout > 0 {
		return ev.limitExceeded(t, fmt.Sprintf("time limit exceeded (%dms)", ev.limits.Timeout.Milliseconds()))
	}
	return value.Errorf(value.ValueError, "evaluation cancelled: %v", t.ctx.Err())
}

func (ev *Evaluator) enterCall(t *tracker) *value.Error {
	max := ev.limits.maxDepth()
	if max > 0 && t.depth >= max {
		return ev.limitExceeded(t, fmt.Sprintf("maximum call depth exceeded (%d)", max))
	}
	t.depth++
	t.calls++
	return nil
}

func (ev *Evaluator) leaveCall(t *tracker) {
	t.depth--
}

func (ev *Evaluator) limitExceeded(t *tracker, msg string) *value.Error {
	if ev.logger != nil {
		ev.logger.Warn().
			Str("limit", msg).
			Int("depth", t.depth).
			Str("elapsed", time.Since(t.start).String()).
			Msg("evaluation limit exceeded")
	}
	ev.emit(TraceLimitExceeded, nil, map[string]string{"reason": msg})
	return value.NewError(value.ValueError, msg)
}
