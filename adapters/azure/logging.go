package azure

import (
	"context"
	"time"

	"github.com/kanebernetes/aksstack/internal/logging"
)

// withMethodLogger emits AZ:<method>:START and returns a context carrying the
// driver logger plus a finisher emitting AZ:<method>:END:OK or AZ:<method>:END:FAILED.
//
//	ctx, cleanup := d.withMethodLogger(ctx, "Provision")
//	defer func() { cleanup(err) }()
func (d *Driver) withMethodLogger(ctx context.Context, method string) (context.Context, func(err error)) {
	startAt := time.Now()
	logger := logging.FromContext(ctx).With("driver", "AZ."+method, "subscription", d.subscriptionID)
	ctx = logging.WithLogger(ctx, logger)
	logger.Info(ctx, "AZ:"+method+":START")

	return ctx, func(err error) {
		elapsed := time.Since(startAt).Seconds()
		if err == nil {
			logger.Info(ctx, "AZ:"+method+":END:OK", "elapsed", elapsed)
			return
		}
		logger.Warn(ctx, "AZ:"+method+":END:FAILED", "err", logging.Truncate(shortError(err), 64), "elapsed", elapsed)
	}
}
