package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/shelftrack/internal/store"
	"github.com/roach88/shelftrack/internal/tag"
)

// NewReadersCommand creates the readers command group.
func NewReadersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readers",
		Short: "Inspect registered readers",
	}
	cmd.AddCommand(newReadersListCommand(rootOpts))
	return cmd
}

func newReadersListCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List readers in the registry",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReadersList(rootOpts, dbPath, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "shelftrack.db", "SQLite database path")
	return cmd
}

func runReadersList(opts *RootOptions, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(dbPath); err != nil {
		if outputErr := formatter.Error(ErrCodeStore, fmt.Sprintf("database not found: %s", dbPath), nil); outputErr != nil {
			return outputErr
		}
		return NewExitError(ExitCommandError, "database not found")
	}

	s, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer s.Close()

	readers, err := s.ListReaders(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "listing readers", err)
	}

	if opts.Format == "json" {
		return formatter.Success(readers)
	}
	return printReadersTable(cmd, readers)
}

func printReadersTable(cmd *cobra.Command, readers []tag.Reader) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tKIND\tNAME")
	for _, r := range readers {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Identity, r.Kind, r.Name)
	}
	return w.Flush()
}
