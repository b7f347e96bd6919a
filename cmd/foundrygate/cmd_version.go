package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"foundrygate/internal/foundry"

	"github.com/spf13/cobra"
)

var sanitizeMaxDigits int

var sanitizeVersionCmd = &cobra.Command{
	Use:   "sanitize-version [raw]",
	Short: "Print the sanitized form of a runtime version string",
	Long: `Reduces a possibly malformed runtime version report to MAJOR.MINOR.PATCH.

With no argument the raw value is read from stdin, so multi-line reports can
be piped in unchanged. Out-of-range or unusable input prints 0.0.0.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSanitizeVersion,
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the environment overlay injected into every launch",
	Long: `Prints the variables the gateway forces onto the runtime, sorted by name.
The ambient environment is not printed.`,
	Args: cobra.NoArgs,
	RunE: runEnv,
}

func init() {
	sanitizeVersionCmd.Flags().IntVar(&sanitizeMaxDigits, "max-digits", 0, "Digit bound per component (default from config)")
}

func runSanitizeVersion(cmd *cobra.Command, args []string) error {
	var raw string
	if len(args) == 1 {
		raw = args[0]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read version from stdin: %w", err)
		}
		raw = string(data)
	}

	bound := sanitizeMaxDigits
	if bound <= 0 {
		bound = cfg.Foundry.GetMaxVersionDigits()
	}

	v := foundry.Sanitizer{MaxGroupDigits: bound}.Sanitize(raw)
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

func runEnv(cmd *cobra.Command, args []string) error {
	sup := foundry.NewSupervisor(foundry.OptionsFromConfig(cfg))
	overlay := sup.Environment().Overlay()

	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(overlay)) {
		fmt.Fprintf(&b, "%s=%s\n", k, overlay[k])
	}
	fmt.Fprint(cmd.OutOrStdout(), b.String())
	return nil
}
