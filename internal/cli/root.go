package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "skilltree",
		Short: "Validate, inspect and simulate skill tree templates",
		Long: `Skilltree works offline on the YAML tree templates the server loads.
It checks them for errors, prints their structure, and replays spend and
refund steps against a fresh copy of a tree.`,
		SilenceUsage: true,
	}

	validateCmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a tree config and build every tree",
		Args:  cobra.ExactArgs(1),
		RunE:  RunValidate,
	}
	validateCmd.Flags().Bool("json", false, "Print machine-readable result")

	inspectCmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print one tree in topological order",
		Args:  cobra.ExactArgs(1),
		RunE:  RunInspect,
	}
	inspectCmd.Flags().String("tree", "", "Tree id to inspect")
	inspectCmd.Flags().Bool("json", false, "Print machine-readable node list")
	_ = inspectCmd.MarkFlagRequired("tree")

	simulateCmd := &cobra.Command{
		Use:   "simulate <file> <spend:id|refund:id>...",
		Short: "Apply spend and refund steps to a tree and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunSimulate,
	}
	simulateCmd.Flags().String("tree", "", "Tree id to simulate")
	simulateCmd.Flags().Bool("json", false, "Print the final snapshot as JSON")
	_ = simulateCmd.MarkFlagRequired("tree")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "skilltree %s\n", version)
		},
	}

	rootCmd.AddCommand(
		validateCmd,
		inspectCmd,
		simulateCmd,
		versionCmd,
	)

	return rootCmd
}
