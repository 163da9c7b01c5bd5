package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List discovered layers in overlay order",
	Long: `Discover the layers directory the same way the generator does and show
each layer with its mount point, unit name and overlay precedence.

Precedence 1 is the layer whose files win in the merged rootfs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd)
		if err != nil {
			return err
		}

		result, err := eng.Layers()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, result)
		}

		PrintSection(out, PrintCount(len(result.Layers), "layer", "layers"))
		if len(result.Layers) == 0 {
			PrintEmptyState(out, "No layers found")
		}

		rows := make([][]string, 0, len(result.Layers))
		for _, l := range result.Layers {
			rows = append(rows, []string{strconv.Itoa(l.Precedence), l.Name, l.SourcePath, l.Unit})
		}
		PrintTable(out, []string{"PRECEDENCE", "NAME", "SOURCE", "UNIT"}, rows)

		PrintSection(out, "Root overlay")
		PrintLabelValue(out, "Unit", result.RootUnit)
		PrintLabelValue(out, "lowerdir", strings.Join(result.LowerDirs, ":"))
		return nil
	},
}
