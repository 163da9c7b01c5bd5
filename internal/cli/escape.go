package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/fex-rootfs-generator/internal/unitname"
)

var (
	escapeUnescape bool
	escapeSuffix   string
)

var escapeCmd = &cobra.Command{
	Use:   "escape <path>...",
	Short: "Convert paths to unit names and back",
	Long: `Print the unit name the generator uses for each path, following the same
rules as systemd-escape --path.

With --unescape, each argument is a unit name and the path it stands for is
printed. An empty --suffix leaves the unit type off.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		suffix := ""
		if escapeSuffix != "" {
			suffix = "." + strings.TrimPrefix(escapeSuffix, ".")
		}

		out := cmd.OutOrStdout()
		for _, arg := range args {
			var (
				line string
				err  error
			)
			if escapeUnescape {
				line, err = unitname.PathUnescape(strings.TrimSuffix(arg, suffix))
			} else {
				line, err = unitname.WithSuffix(arg, suffix)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	escapeCmd.Flags().BoolVarP(&escapeUnescape, "unescape", "u", false, "Convert unit names back to paths")
	escapeCmd.Flags().StringVar(&escapeSuffix, "suffix", "mount", "Unit type suffix to append or strip")
}
