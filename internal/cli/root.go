// internal/cli/root.go

// Package cli exposes the library desk as a cobra command tree. Running the
// root command without a subcommand starts the interactive menu.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"librarydesk/internal/calendar"
	"librarydesk/internal/config"
	"librarydesk/internal/telemetry"
)

type options struct {
	clock calendar.Clock
}

// Option configures the command tree.
type Option func(*options)

// WithClock replaces the host clock as the source of "today".
func WithClock(clock calendar.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// NewRootCommand builds the librarydesk command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	o := options{clock: calendar.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	v := config.New()
	var (
		configPath string
		a          *app
	)

	root := &cobra.Command{
		Use:           "librarydesk",
		Short:         "Single-operator library desk: books, readers, borrowing and returns",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			logger, err := telemetry.NewLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			a, err = newApp(cmd.Context(), cfg, logger, o.clock)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a == nil {
				return nil
			}
			return a.close(context.WithoutCancel(cmd.Context()))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return NewMenu(a, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to a config file (default ./librarydesk.yaml)")
	flags.String("data-dir", ".", "directory holding books.txt, readers.txt and borrows.txt")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.Bool("strict", false, "fail on malformed lines in the data files instead of skipping them")
	_ = v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("strict_load", flags.Lookup("strict"))

	appFn := func() *app { return a }
	root.AddCommand(
		newBooksCommand(appFn),
		newReadersCommand(appFn),
		newCheckCommand(appFn),
	)

	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
