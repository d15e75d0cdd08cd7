package submit

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/marketplace-postsubmit/internal/platform"
)

// runStage executes one external call and converts its outcome into a
// ProcessResultAction. It never lets an error escape: this is the
// isolation boundary that keeps one failing stage from aborting its
// siblings.
func runStage(ctx context.Context, typ ProcessType, description string, fn func(context.Context) error) ProcessResultAction {
	if err := fn(ctx); err != nil {
		zctx.From(ctx).Error("Submit stage failed",
			zap.String("stage", string(typ)),
			zap.String("action", description),
			zap.Error(err),
		)
		return ProcessResultAction{
			Type:        typ,
			Description: description,
			Exception:   classifyError(err),
		}
	}
	return ProcessResultAction{
		Type:        typ,
		Description: description,
		Success:     true,
	}
}

// runStageValue is runStage for calls that produce a value. On failure it
// returns the zero value of T alongside the failed action, so callers can
// destructure the pair without nil checks.
func runStageValue[T any](ctx context.Context, typ ProcessType, description string, fn func(context.Context) (T, error)) (ProcessResultAction, T) {
	v, err := fn(ctx)
	if err != nil {
		zctx.From(ctx).Error("Submit stage failed",
			zap.String("stage", string(typ)),
			zap.String("action", description),
			zap.Error(err),
		)
		var zero T
		return ProcessResultAction{
			Type:        typ,
			Description: description,
			Exception:   classifyError(err),
		}, zero
	}
	return ProcessResultAction{
		Type:        typ,
		Description: description,
		Success:     true,
	}, v
}

// classifyError maps an error into the structured exception recorded on a
// failed action.
func classifyError(err error) *ProcessResultException {
	var platformErr *platform.Error
	switch {
	case errors.As(err, &platformErr):
		return &ProcessResultException{
			Category:  "platform_api",
			Message:   err.Error(),
			Retryable: platformErr.Retryable(),
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &ProcessResultException{
			Category:  "timeout",
			Message:   err.Error(),
			Retryable: true,
		}
	case errors.Is(err, context.Canceled):
		return &ProcessResultException{
			Category: "canceled",
			Message:  err.Error(),
		}
	default:
		return &ProcessResultException{
			Category: "internal",
			Message:  err.Error(),
		}
	}
}
