// Package cli implements the command-line interface for unipkg.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"unipkg/internal/config"
	"unipkg/internal/executor"
	"unipkg/internal/history"
	"unipkg/internal/logging"
	"unipkg/internal/ui"
	"unipkg/pkg/backends"
	"unipkg/pkg/manager"
)

// Build metadata - set at build time via ldflags
var (
	Version   = "0.1.0-dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// app holds the global flags and the state shared by every command.
type app struct {
	// Global flags
	cfgFile  string
	backends []string
	yes      bool
	timeout  time.Duration
	taskID   string
	verbose  bool
	noColor  bool

	cfg      *config.Config
	log      logging.Logger
	registry *manager.Registry

	out     io.Writer
	logSink *logSink

	// Overridable for tests.
	newRegistry func(cfg *config.Config, opts backends.Options) (*manager.Registry, error)
	openHistory func() (*history.Store, error)
	confirm     func(op manager.Operation, backend string, specs []manager.PackageSpec) (bool, error)
	interactive func() bool
}

func newApp() *app {
	return &app{
		out:         os.Stdout,
		logSink:     &logSink{w: os.Stderr},
		newRegistry: backends.NewRegistry,
		openHistory: history.Open,
		confirm:     ui.ConfirmOperation,
		interactive: stdinIsTerminal,
	}
}

// NewRootCommand builds the unipkg command tree.
func NewRootCommand() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "unipkg",
		Short: "One interface for pacman, apt, dnf, yay and paru",
		Long: `unipkg detects the package manager available on this host and runs
install, remove, update and query through it, reporting the same
per-package outcome whichever backend did the work.

Examples:
  unipkg install git vim            # Install with the detected backend
  unipkg install -b aur spotify     # Prefer an AUR helper
  unipkg remove -y nano             # Remove without confirmation
  unipkg query 'git>=2.40'          # Check an installed version
  unipkg apply plan.toml -j 4       # Run a batch plan`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
	}
	rootCmd.SetOut(a.out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file path")
	flags.StringSliceVarP(&a.backends, "backend", "b", nil, "preferred backend, repeatable (pacman, apt, dnf, yay, paru, aur)")
	flags.BoolVarP(&a.yes, "yes", "y", false, "assume yes to all prompts")
	flags.DurationVar(&a.timeout, "timeout", 0, "time limit for each package manager invocation")
	flags.StringVar(&a.taskID, "task", "", "task id attached to log lines and history")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "stream package manager output")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newVersionCmd(a),
		newOperationCmd(a, manager.OpInstall),
		newOperationCmd(a, manager.OpRemove),
		newOperationCmd(a, manager.OpUpdate),
		newOperationCmd(a, manager.OpQuery),
		newDetectCmd(a),
		newHistoryCmd(a),
		newApplyCmd(a),
	)
	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if !errors.Is(err, ErrUnsuccessful) {
		ui.ErrorMsg("%v", err)
	}
	return 1
}

// initialize sets up the application state.
func (a *app) initialize() error {
	var err error
	if a.cfgFile != "" {
		a.cfg, err = config.LoadFrom(a.cfgFile)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	// Apply global flag overrides
	if a.yes {
		a.cfg.General.AssumeYes = true
	}
	if a.timeout > 0 {
		a.cfg.General.Timeout = config.Duration{Duration: a.timeout}
	}
	if a.verbose {
		a.cfg.Output.Verbose = true
	}
	if a.noColor {
		a.cfg.Output.Color = false
	}

	ui.Init(a.cfg.ShouldUseColor(), a.cfg.Output.Unicode)

	level := a.cfg.Output.LogLevel
	if a.cfg.Output.Verbose {
		level = "debug"
	}
	if a.logSink == nil {
		a.logSink = &logSink{w: os.Stderr}
	}
	a.log = logging.New(logging.Options{Level: level, NoColor: !a.cfg.ShouldUseColor(), Output: a.logSink})

	a.registry, err = a.newRegistry(a.cfg, backends.Options{
		Runner: executor.New(),
		Logger: a.log,
	})
	return err
}

// options returns the per-request options derived from flags and config.
func (a *app) options() manager.Options {
	return manager.Options{
		AssumeYes: a.cfg.General.AssumeYes,
		NoConfirm: a.cfg.General.AssumeYes,
		TaskID:    a.taskID,
	}
}

// record writes an operation to the history journal. Failures only warn.
func (a *app) record(entry *history.Entry) {
	if !a.cfg.General.History {
		return
	}
	store, err := a.openHistory()
	if err != nil {
		ui.WarningMsg("history not recorded: %v", err)
		return
	}
	defer store.Close()

	if err := store.Record(entry); err != nil {
		ui.WarningMsg("history not recorded: %v", err)
	}
}

// logSink is the log destination; it can be redirected while a live view
// owns the terminal.
type logSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// hold buffers log output until the returned release func is called.
func (s *logSink) hold() (release func()) {
	var buf bytes.Buffer
	s.mu.Lock()
	prev := s.w
	s.w = &buf
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.w = prev
		_, _ = prev.Write(buf.Bytes())
	}
}

func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print unipkg version",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "unipkg version %s\n", Version)
			if Commit != "unknown" {
				fmt.Fprintf(a.out, "  Commit: %s\n", Commit)
			}
			if BuildTime != "unknown" {
				fmt.Fprintf(a.out, "  Built:  %s\n", BuildTime)
			}
		},
	}
}
