//go:build windows

package cmd

import (
	"context"

	"github.com/conneroisu/hrserve/internal/logging"
	"github.com/conneroisu/hrserve/internal/server"
)

// refreshOnHangup waits for ctx; Windows has no SIGHUP.
func refreshOnHangup(ctx context.Context, _ *server.Server, _ logging.Logger) {
	<-ctx.Done()
}
