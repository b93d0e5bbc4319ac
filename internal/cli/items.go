package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/shelftrack/internal/store"
	"github.com/roach88/shelftrack/internal/tag"
)

// NewItemsCommand creates the items command group.
func NewItemsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect tracked items",
	}
	cmd.AddCommand(newItemsListCommand(rootOpts))
	cmd.AddCommand(newItemsShowCommand(rootOpts))
	return cmd
}

func newItemsListCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List item records",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItemsList(rootOpts, dbPath, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "shelftrack.db", "SQLite database path")
	return cmd
}

func newItemsShowCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "show <key>",
		Short:         "Show one item record with its audit log",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItemsShow(rootOpts, dbPath, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "shelftrack.db", "SQLite database path")
	return cmd
}

func openStoreForRead(formatter *OutputFormatter, dbPath string) (*store.Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		if outputErr := formatter.Error(ErrCodeStore, fmt.Sprintf("database not found: %s", dbPath), nil); outputErr != nil {
			return nil, outputErr
		}
		return nil, NewExitError(ExitCommandError, "database not found")
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening database", err)
	}
	return s, nil
}

func runItemsList(opts *RootOptions, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := openStoreForRead(formatter, dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := s.ListItems(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "listing items", err)
	}

	if opts.Format == "json" {
		return formatter.Success(items)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTITLE\tSTATUS\tREADER\tUPDATED")
	for _, item := range items {
		reader := item.ReaderIdentity
		if reader == "" {
			reader = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			item.Key, item.Title, item.Status, reader, item.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func runItemsShow(opts *RootOptions, dbPath, rawKey string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	key, err := tag.NormalizeKey(rawKey)
	if err != nil {
		if outputErr := formatter.Error(ErrCodeGeneric, "invalid item key", nil); outputErr != nil {
			return outputErr
		}
		return NewExitError(ExitCommandError, "invalid item key")
	}

	s, err := openStoreForRead(formatter, dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	item, err := s.GetItem(cmd.Context(), key)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading item", err)
	}
	if item == nil {
		if outputErr := formatter.Error(ErrCodeGeneric, fmt.Sprintf("no record for key %s", key), nil); outputErr != nil {
			return outputErr
		}
		return NewExitError(ExitFailure, "item not found")
	}

	if opts.Format == "json" {
		return formatter.Success(item)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Key:     %s\n", item.Key)
	fmt.Fprintf(out, "Title:   %s\n", item.Title)
	fmt.Fprintf(out, "Authors: %s\n", strings.Join(item.Authors, ", "))
	fmt.Fprintf(out, "Status:  %s\n", item.Status)
	if item.ReaderIdentity != "" {
		fmt.Fprintf(out, "Reader:  %s\n", item.ReaderIdentity)
	}
	fmt.Fprintf(out, "Updated: %s\n", item.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(out, "Log:")
	for _, entry := range item.Log {
		fmt.Fprintf(out, "  %s  %s\n", entry.Time.Format("15:04:05"), entry.Message)
	}
	return nil
}
