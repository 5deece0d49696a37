package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/hrserve/internal/config"
)

// addServeFlags registers the server and watcher flags as persistent flags
// so `config show` sees the same overrides `serve` would.
func addServeFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.IntP("port", "p", config.DefaultPort, "Port to serve on (0 picks a free port)")
	flags.String("host", config.DefaultHost, "Host to bind to")
	flags.StringP("root", "r", config.DefaultRoot, "Directory to serve")
	flags.IntP("max-concurrent", "j", config.DefaultMaxConcurrentRequests, "Maximum file requests handled at once")
	flags.StringSlice("allowed-origin", nil, "Extra Origin host patterns allowed to open reload connections")
	flags.Duration("shutdown-timeout", config.DefaultShutdownTimeout, "How long in-flight requests get on shutdown")

	flags.Bool("watch", true, "Reload browsers when files change")
	flags.StringSlice("watch-path", nil, "Directories to watch (default is the served root)")
	flags.StringP("on-change", "c", "", "Command to run after a change, before browsers reload")
	flags.Duration("debounce", config.DefaultDebounce, "Quiet period before a batch of changes is handled")
	flags.StringSlice("ignore", nil, "File or directory name patterns the watcher ignores")

	bindFlags(flags, map[string]string{
		"port":             "server.port",
		"host":             "server.host",
		"root":             "server.root",
		"max-concurrent":   "server.max_concurrent_requests",
		"allowed-origin":   "server.allowed_origins",
		"shutdown-timeout": "server.shutdown_timeout",
		"watch":            "watch.enabled",
		"watch-path":       "watch.paths",
		"on-change":        "watch.command",
		"debounce":         "watch.debounce",
		"ignore":           "watch.ignore",
	})
}

// bindFlags binds each named flag to its configuration key.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic("binding flag " + name + ": " + err.Error())
		}
	}
}
