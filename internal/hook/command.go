// Package hook runs the user's on-change command before browsers are told to
// reload, so a build step can finish first.
package hook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/conneroisu/hrserve/internal/logging"
)

// ErrEmptyCommand is returned by Parse for a blank command line.
var ErrEmptyCommand = errors.New("empty command")

// Command is a parsed on-change command.
type Command struct {
	name    string
	args    []string
	dir     string
	timeout time.Duration
	logger  logging.Logger
}

// Option configures a Command.
type Option func(*Command)

// WithDir runs the command in dir.
func WithDir(dir string) Option {
	return func(c *Command) { c.dir = dir }
}

// WithTimeout bounds each run. Zero means no limit beyond the caller's
// context.
func WithTimeout(d time.Duration) Option {
	return func(c *Command) { c.timeout = d }
}

// Parse splits line on whitespace into a program and its arguments. No shell
// is involved, so quoting and globbing are not interpreted.
func Parse(line string, logger logging.Logger, opts ...Option) (*Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil, ErrEmptyCommand
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	c := &Command{
		name:   parts[0],
		args:   parts[1:],
		logger: logger.WithComponent("hook"),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// String returns the command line as it will be run.
func (c *Command) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

// Run executes the command and waits for it. Its combined output is logged;
// a non-zero exit is returned as an error carrying that output.
func (c *Command) Run(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	perf := logging.StartOperation(c.logger, "on_change_command")

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Dir = c.dir
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		err = fmt.Errorf("command %q failed: %w", c.String(), err)
		perf.EndWithError(ctx, err, "output", strings.TrimSpace(out.String()))
		return err
	}

	c.logger.Info(ctx, "On-change command finished", "command", c.String())
	perf.End(ctx, "command", c.String(), "output", strings.TrimSpace(out.String()))

	return nil
}
