package cli

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/executor"
	"github.com/spf13/cobra"
)

// execOptions holds options for the exec command.
type execOptions struct {
	Input   string
	Format  string
	Timeout time.Duration
	MaxRows int
	Export  bool
	Admin   bool
}

func newExecCommand() *cobra.Command {
	opts := &execOptions{}

	cmd := &cobra.Command{
		Use:   "exec <connection-id> [SQL]",
		Short: "Run one statement on a connection",
		Long: `Run one statement on a configured connection and print the rows.

The statement is taken from the second argument, from --input, or from
standard input. It goes through the same screening, timeout, row cap and
recording as statements sent over HTTP.`,
		Example: `  # Run a query
  vizly exec warehouse "SELECT id, total FROM orders"

  # Read the statement from a file and print JSON
  vizly exec warehouse -i report.sql --format json

  # Export-sized row cap
  vizly exec warehouse "SELECT * FROM events" --export --format csv`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Statement timeout (default from query.default_timeout)")
	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", 0, "Row cap (default from query.default_max_rows)")
	cmd.Flags().BoolVar(&opts.Export, "export", false, "Use the export row cap")
	cmd.Flags().BoolVar(&opts.Admin, "admin", false, "Allow write statements")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runExec(cmd *cobra.Command, args []string, opts *execOptions) error {
	if opts.Timeout < 0 || opts.MaxRows < 0 {
		return errs.New(errs.ErrKindInvalidInput, "--timeout and --max-rows must not be negative")
	}
	switch opts.Format {
	case "table", "json", "csv":
	default:
		return unknownFormat(opts.Format)
	}

	query, err := readStatement(cmd.InOrStdin(), args[1:], opts.Input)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		conn, err := a.catalog.Get(args[0])
		if err != nil {
			return err
		}

		res, err := a.executor.Execute(ctx, executor.Request{
			Connection: conn,
			SQL:        query,
			Timeout:    opts.Timeout,
			MaxRows:    opts.MaxRows,
			Export:     opts.Export,
			Privileged: opts.Admin,
		})
		if err != nil {
			return err
		}
		return renderResult(cmd.OutOrStdout(), res, opts.Format)
	})
}

// readStatement picks the statement from args, then the input file, then
// stdin.
func readStatement(stdin io.Reader, args []string, input string) (string, error) {
	switch {
	case len(args) > 0 && input != "":
		return "", errs.New(errs.ErrKindInvalidInput, "give the statement as an argument or with --input, not both")
	case len(args) > 0:
		return args[0], nil
	case input != "":
		b, err := os.ReadFile(input)
		if err != nil {
			return "", errs.Wrap(errs.ErrKindInvalidInput, "failed to read "+input, err)
		}
		return string(b), nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "failed to read statement from stdin", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "no statement given")
	}
	return string(b), nil
}
