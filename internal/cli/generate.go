package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/fex-rootfs-generator/internal/engine"
	"github.com/danieljhkim/fex-rootfs-generator/internal/planner"
)

type generateOutput struct {
	OutputDir string   `json:"output_dir"`
	DryRun    bool     `json:"dry_run"`
	Layers    []string `json:"layers"`
	Units     []string `json:"units"`
	RootUnit  string   `json:"root_unit"`
	LowerDirs []string `json:"lowerdir"`
	Applied   []string `json:"applied"`
	Skipped   []string `json:"skipped"`
}

// runGenerate is the generator entry point: systemd passes normal, early
// and late output directories, of which only the first is used.
func runGenerate(cmd *cobra.Command, args []string) error {
	eng, err := newEngine(cmd)
	if err != nil {
		return err
	}

	req := &engine.GenerateRequest{
		OutputDir: args[0],
		DryRun:    generatorDry,
	}
	if len(args) > 1 {
		req.EarlyDir = args[1]
	}
	if len(args) > 2 {
		req.LateDir = args[2]
	}

	result, err := eng.Generate(req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return outputJSON(out, generateOutput{
			OutputDir: result.Plan.OutputDir,
			DryRun:    req.DryRun,
			Layers:    result.Plan.Layers,
			Units:     result.Plan.Units(),
			RootUnit:  result.Plan.RootUnit,
			LowerDirs: result.Plan.Stack.LowerDirs,
			Applied:   operationStrings(result.Applied),
			Skipped:   operationStrings(result.Skipped),
		})
	}

	// a generator stays silent on success unless asked
	if !req.DryRun {
		return nil
	}

	PrintSection(out, fmt.Sprintf("Plan for %s", result.Plan.OutputDir))
	PrintList(out, operationStrings(result.Plan.Operations), 1)

	for _, op := range result.Plan.Operations {
		if op.Type != planner.OpWriteUnit {
			continue
		}
		PrintSection(out, op.Unit)
		_, _ = out.Write(op.Data)
	}
	return nil
}

func operationStrings(ops []planner.Operation) []string {
	lines := make([]string, 0, len(ops))
	for _, op := range ops {
		lines = append(lines, op.String())
	}
	return lines
}
