package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/hrserve/internal/config"
	"github.com/conneroisu/hrserve/internal/hook"
	"github.com/conneroisu/hrserve/internal/logging"
	"github.com/conneroisu/hrserve/internal/server"
	"github.com/conneroisu/hrserve/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve [dir]",
	Aliases: []string{"s"},
	Short:   "Serve a directory with live reload",
	Long: `Serve a directory over HTTP. HTML pages get a reload script injected;
browsers reload when watched files change or on SIGHUP.

Examples:
  hrserve serve                       # Serve . on localhost:8000
  hrserve serve ./public -p 3000      # Serve ./public on port 3000
  hrserve serve -c "make css"         # Run make css before each reload
  hrserve serve --watch=false         # Serve only; reload on SIGHUP`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.Args = cobra.MaximumNArgs(1)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.Set("server.root", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLogs, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLogs()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	return a.run(ctx, cmd.OutOrStdout())
}

// app is one running hrserve: the server plus, when enabled, the watcher
// feeding it.
type app struct {
	cfg     *config.Config
	logger  logging.Logger
	srv     *server.Server
	watcher *watcher.FileWatcher
	command *hook.Command
}

func newApp(cfg *config.Config, logger logging.Logger) (*app, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	srv, err := server.New(cfg.Server, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, srv: srv}

	if cfg.Watch.Command != "" {
		a.command, err = hook.Parse(cfg.Watch.Command, logger)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Watch.Enabled {
		a.watcher, err = newWatcher(cfg, logger)
		if err != nil {
			return nil, err
		}
		a.watcher.AddHandler(a.onChange)
	}

	return a, nil
}

func newWatcher(cfg *config.Config, logger logging.Logger) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, err
	}

	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	if len(cfg.Watch.Ignore) > 0 {
		fw.AddFilter(watcher.IgnoreFilter(cfg.Watch.Ignore))
	}
	// Log files written under a watched tree would trigger endless reloads.
	if cfg.Log.Dir != "" {
		fw.AddFilter(excludeDir(cfg.Log.Dir))
	}

	if err := fw.WatchAll(cfg.Watch.Paths); err != nil {
		_ = fw.Stop()
		return nil, err
	}

	return fw, nil
}

// onChange runs the on-change command, then reloads browsers. A failed
// command leaves browsers on the page they have.
func (a *app) onChange(ctx context.Context, events []watcher.ChangeEvent) error {
	a.logger.Info(ctx, "Changes detected", "files", len(events))

	if a.command != nil {
		if err := a.command.Run(ctx); err != nil {
			return err
		}
	}

	a.srv.TriggerRefresh()

	return nil
}

// run serves until ctx is cancelled or the server fails.
func (a *app) run(ctx context.Context, out io.Writer) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.srv.Run(gctx)
	})

	g.Go(func() error {
		select {
		case <-a.srv.Ready():
			fmt.Fprintf(out, "Serving %s at http://%s\n", a.srv.Root(), a.srv.Addr())
		case <-gctx.Done():
		}
		return nil
	})

	if a.watcher != nil {
		g.Go(func() error {
			if err := a.watcher.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			return a.watcher.Stop()
		})
	}

	g.Go(func() error {
		refreshOnHangup(gctx, a.srv, a.logger)
		return nil
	})

	return g.Wait()
}

// newLogger builds the console logger and, when cfg.Dir is set, tees it into
// a dated JSON file there. The returned func closes the file.
func newLogger(cfg config.LogConfig, out io.Writer) (logging.Logger, func() error, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	loggerConfig := &logging.LoggerConfig{
		Level:  level,
		Format: cfg.Format,
		Output: out,
	}
	console := logging.NewLogger(loggerConfig)

	if cfg.Dir == "" {
		return console, func() error { return nil }, nil
	}

	file, err := logging.NewFileLogger(loggerConfig, cfg.Dir)
	if err != nil {
		return nil, nil, err
	}

	return logging.NewMultiLogger(console, file), file.Close, nil
}

// excludeDir rejects paths inside dir.
func excludeDir(dir string) watcher.FileFilter {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}

	return func(path string) bool {
		p, err := filepath.Abs(path)
		if err != nil {
			return true
		}
		return p != abs && !strings.HasPrefix(p, abs+string(filepath.Separator))
	}
}
