package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

// Close closes an io.Closer on a cleanup path where the caller has no use
// for the error, logging it instead of dropping it. Nil closers are
// ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}
