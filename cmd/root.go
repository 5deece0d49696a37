package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	srverrors "github.com/conneroisu/hrserve/internal/errors"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hrserve",
	Short: "Static file server with live reload",
	Long: `hrserve serves a directory over HTTP and reloads connected browsers
when its files change.

Every HTML page it serves carries a small script that keeps a WebSocket open
to the server; when the watched files change (or the process receives
SIGHUP) each page reloads itself.

Quick Start:
  hrserve                         Serve the current directory on :8000
  hrserve serve ./site -p 3000    Serve ./site on port 3000
  hrserve config show             Show the effective configuration`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an error returned by Execute to a process exit status.
// Configuration errors exit with 2 so scripts can tell them from runtime
// failures.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case srverrors.IsConfigError(err):
		return 2
	default:
		return 1
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .hrserve.yml, can also use HRSERVE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-dir", "", "also write JSON logs to a dated file in this directory")
	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
		"log-dir":    "log.dir",
	})

	addServeFlags(rootCmd)
}

// initConfig points viper at the config file and the environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("HRSERVE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".hrserve")
	}

	// HRSERVE_SERVER_PORT overrides server.port, and so on.
	viper.SetEnvPrefix("HRSERVE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing file is fine; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
