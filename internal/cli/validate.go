package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rumscope/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Path   string                   `json:"path"`
	Errors []config.ValidationError `json:"errors,omitempty"`
}

// String renders the result as text.
func (r ValidationResult) String() string {
	if r.Valid {
		return fmt.Sprintf("%s %s valid", mark(true), r.Path)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: validation failed\n", mark(false), r.Path)
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n  %s", e.Error())
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.toml>",
		Short: "Validate a config file",
		Long: `Decode a TOML config file and check it against the config schema.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (unknown keys, schema violations)
  2 - Command error (file not found)`,
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
		_ = formatter.Error(CodeInvalidConfig, fmt.Sprintf("config not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "config not found", err)
	}

	formatter.VerboseLog("Loading %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		// Decode failures (syntax, unknown keys) are validation failures.
		result := ValidationResult{
			Path:   path,
			Errors: []config.ValidationError{{Code: config.ErrSchema, Message: err.Error()}},
		}
		return outputValidation(formatter, result)
	}

	result := ValidationResult{Path: path, Errors: config.Validate(cfg)}
	result.Valid = len(result.Errors) == 0
	return outputValidation(formatter, result)
}

func outputValidation(formatter *OutputFormatter, result ValidationResult) error {
	if result.Valid {
		return formatter.Success(result)
	}

	if err := formatter.Failure(result.Errors[0].Code, result.Errors[0].Message, result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
