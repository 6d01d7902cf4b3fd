package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/freighter-dev/freighter/internal/graph"
	"github.com/freighter-dev/freighter/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the workspace without releasing",
	Long: `Validate loads every package manifest, resolves internal dependencies,
and checks the dependency graph for cycles. The publish order is printed
tier by tier.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

var validateVerbose bool

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVarP(&validateVerbose, "verbose", "v", false, "Show dependencies per package")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	root, err := manifest.FindWorkspaceRoot(cwd)
	if err != nil {
		return err
	}

	descriptors, err := manifest.Load(root)
	if err != nil {
		return err
	}
	g, err := graph.Build(descriptors)
	if err != nil {
		return err
	}

	fmt.Printf("Workspace: %s\n", root)
	fmt.Printf("Packages:  %d\n\n", len(descriptors))

	for i, tier := range g.Tiers() {
		fmt.Println(headerStyle.Render(fmt.Sprintf("Tier %d", i)))
		for _, name := range tier {
			desc := g.Descriptor(name)
			line := fmt.Sprintf("  %s %s", packageStyle.Render(name), desc.Version)
			if !desc.Publishable() {
				line += dimStyle.Render("  (not published)")
			}
			fmt.Println(line)
			if validateVerbose {
				if deps := g.Dependencies(name); len(deps) > 0 {
					fmt.Println(dimStyle.Render("    depends on: " + strings.Join(deps, ", ")))
				}
			}
		}
	}

	fmt.Println("\n" + okStyle.Render("workspace valid"))
	return nil
}
