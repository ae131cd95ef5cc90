package closenicely

import (
	"context"
	"io"

	"github.com/metasolutions/itada-infra/pkg/logging"
	"go.uber.org/zap"
)

// OrDebug closes c, logging a failure at debug level. Use it for readers and other closes where nothing is lost.
func OrDebug(c io.Closer) {
	if err := c.Close(); err != nil {
		zap.L().Debug("Failed to close", zap.Error(err))
	}
}

// OrWarn closes using the context's logger, at warn level since a failed close there means lost output.
func OrWarn(ctx context.Context, c io.Closer) {
	if err := c.Close(); err != nil {
		logging.GetLogger(ctx).Warn("Failed to close", zap.Error(err))
	}
}
