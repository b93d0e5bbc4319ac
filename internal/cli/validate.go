package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/shelftrack/internal/topology"
)

// ValidationResult holds topology validation results.
type ValidationResult struct {
	Valid           bool   `json:"valid"`
	Readers         int    `json:"readers"`
	SweepInterval   string `json:"sweep_interval,omitempty"`
	PresenceTimeout string `json:"presence_timeout,omitempty"`
	Error           string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <topology-file>",
		Short: "Validate a topology file",
		Long: `Validate a CUE topology file without starting anything.

Checks syntax, reader kinds and names, and sweep durations. Errors carry
the source position of the offending field.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); err != nil {
		if outputErr := formatter.Error(ErrCodeTopology, fmt.Sprintf("topology file not found: %s", path), nil); outputErr != nil {
			return outputErr
		}
		return NewExitError(ExitCommandError, "topology file not found")
	}

	topo, err := topology.Load(path)
	if err != nil {
		var pe *topology.ParseError
		details := any(nil)
		if errors.As(err, &pe) {
			details = map[string]string{"field": pe.Field}
		}
		if outputErr := formatter.Error(ErrCodeTopology, err.Error(), details); outputErr != nil {
			return outputErr
		}
		return WrapExitError(ExitFailure, "topology invalid", err)
	}

	formatter.VerboseLog("validated %s", path)
	if opts.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:           true,
			Readers:         len(topo.Readers),
			SweepInterval:   topo.SweepInterval.String(),
			PresenceTimeout: topo.PresenceTimeout.String(),
		})
	}
	return formatter.Success(fmt.Sprintf("topology valid: %d readers, sweep %s, timeout %s",
		len(topo.Readers), topo.SweepInterval, topo.PresenceTimeout))
}
