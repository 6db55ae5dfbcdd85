package async

import (
	"context"

	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

// Dispatch runs the handler in a new goroutine detached from the caller's
// lifetime. The audit trail of privacy decisions is written this way: the
// retrieval path must never wait on the audit store, and cancelling a
// query must not lose records already decided.
//
// The handler gets a fresh background context that keeps only the
// caller's logger. Errors and panics are logged, never propagated.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := context.Background()
	if logger := logging.From(ctx); logger != nil {
		bgCtx = logging.With(bgCtx, logger)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			logging.From(bgCtx).Error("async handler failed", logging.ErrAttr(err))
		}
	}()
}
