package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/astrule/pkg/ruleset"
)

// ErrValidationFailed is returned when any rule path fails to load.
var ErrValidationFailed = errors.New("rule validation failed")

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "validate <rule-file|dir>...",
		Short: "Check rule files without running them",
		Long: `Validate YAML rule files against the rule schema and compile them.

A rule must contain an affirmative pattern or kind term; not and any accept
only affirmative rules. Directories are searched for .yml and .yaml files.

Examples:
  astrule validate rules/
  astrule validate rules/no-console.yml rules/no-var.yml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args, !noColor)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

func runValidate(w io.Writer, paths []string, colored bool) error {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	if colored {
		pass.EnableColor()
		fail.EnableColor()
	} else {
		pass.DisableColor()
		fail.DisableColor()
	}

	failed := 0

	for _, path := range paths {
		rules, err := ruleset.LoadPaths(path)
		if err != nil {
			failed++

			fmt.Fprintf(w, "%s %s\n", fail.Sprint("FAIL"), path)

			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}

			continue
		}

		fmt.Fprintf(w, "%s %s (%s)\n", pass.Sprint("PASS"), path, plural(len(rules), "rule"))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d paths", ErrValidationFailed, failed, len(paths))
	}

	return nil
}
