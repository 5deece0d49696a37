//go:build !windows

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/hrserve/internal/logging"
	"github.com/conneroisu/hrserve/internal/server"
)

// refreshOnHangup reloads every browser each time the process gets SIGHUP,
// until ctx is done.
func refreshOnHangup(ctx context.Context, srv *server.Server, logger logging.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info(ctx, "SIGHUP received, reloading browsers")
			srv.TriggerRefresh()
		}
	}
}
