package main

import (
	"context"

	"github.com/kanebernetes/aksstack/internal/logging"
)

// withCmdRunLogger implements the Span pattern for CLI command logging:
// CMD:<operation>/S on start, CMD:<operation>/EOK or /EFAIL when done.
//
//	ctx, cleanup := withCmdRunLogger(ctx, "up", stack)
//	defer func() { cleanup(err) }()
func withCmdRunLogger(ctx context.Context, operation, stack string) (context.Context, func(err error)) {
	return logging.Span(ctx, "CMD:"+operation, "stack", stack)
}
