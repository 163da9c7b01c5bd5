package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/danieljhkim/fex-rootfs-generator/internal/config"
)

var (
	// Global flags
	jsonOutput   bool
	configFile   string
	onDuplicate  = config.DefaultDuplicatePolicy
	generatorDry bool

	// Colors for help output sections
	groupTitleColor   = color.New(color.FgCyan, color.Bold)
	sectionTitleColor = color.New(color.FgBlue, color.Bold)
)

var _ pflag.Value = (*config.DuplicatePolicy)(nil)

// rootCmd is the generator itself; systemd runs it with the generator
// output directories as positional arguments.
var rootCmd = &cobra.Command{
	Use:     "fex-rootfs-generator normal-dir [early-dir] [late-dir]",
	Version: "dev",
	Short:   "systemd generator for the FEX-Emu layered x86 rootfs",
	Long: `fex-rootfs-generator turns the layers shipped in /usr/share/fex-emu/layers
into systemd mount units: one mount per layer and an overlay mount that stacks
them into the FEX-Emu rootfs.

systemd runs it at boot and on daemon-reload as
  fex-rootfs-generator normal-dir [early-dir] [late-dir]
Units are written to normal-dir; early-dir and late-dir are ignored.`,
	Args:          cobra.RangeArgs(1, 3),
	RunE:          runGenerate,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// customHelpFunc returns a custom help function that colors group titles
func customHelpFunc(cmd *cobra.Command, args []string) {
	var help strings.Builder

	if cmd.Long != "" {
		help.WriteString(cmd.Long)
		help.WriteString("\n\n")
	}

	help.WriteString(sectionTitleColor.Sprint("Usage:"))
	help.WriteString("\n")
	fmt.Fprintf(&help, "  %s\n", cmd.UseLine())
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(&help, "  %s [command]\n", cmd.CommandPath())
	}
	help.WriteString("\n")

	for _, group := range cmd.Groups() {
		help.WriteString(groupTitleColor.Sprint(group.Title))
		help.WriteString("\n")

		for _, c := range cmd.Commands() {
			if c.GroupID == group.ID && !c.Hidden {
				fmt.Fprintf(&help, "  %-11s %s\n", c.Name(), c.Short)
			}
		}
		help.WriteString("\n")
	}

	if cmd.HasAvailableLocalFlags() || cmd.HasAvailablePersistentFlags() {
		help.WriteString(sectionTitleColor.Sprint("Flags:"))
		help.WriteString("\n")
		help.WriteString(cmd.LocalFlags().FlagUsages())
		help.WriteString(cmd.InheritedFlags().FlagUsages())
		help.WriteString("\n")
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(&help, "Use \"%s [command] --help\" for more information about a command.\n", cmd.CommandPath())
	}

	fmt.Fprint(cmd.OutOrStdout(), help.String())
}

func init() {
	rootCmd.SetHelpFunc(customHelpFunc)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file (yaml, toml or json)")
	flags.Var(&onDuplicate, "on-duplicate", "How to resolve layers with the same name: reject, keep-first or keep-last")

	defaults := config.DefaultPaths()
	flags.String("layers-dir", defaults.LayersDir, "Directory holding one entry per layer")
	flags.String("mounts-dir", defaults.MountsDir, "Directory the layers are mounted under")
	flags.String("rootfs-dir", defaults.RootfsDir, "Mount point of the merged rootfs")
	flags.String("writable-dir", defaults.WritableDir, "Overlay upper directory")
	flags.String("work-dir", defaults.WorkDir, "Overlay work directory")

	rootCmd.Flags().BoolVar(&generatorDry, "dry-run", false, "Print the units that would be generated without writing them")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "inspection",
		Title: "Inspection:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "cli-tooling",
		Title: "CLI & Tooling:",
	})

	versionCmd := &cobra.Command{
		Use:     "version",
		Short:   "Print the generator version",
		Args:    cobra.NoArgs,
		GroupID: "cli-tooling",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rootCmd.Version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	helpCmd := &cobra.Command{
		Use:     "help [command]",
		Short:   "Help about any command",
		GroupID: "cli-tooling",
		Run: func(cmd *cobra.Command, args []string) {
			target, _, err := cmd.Root().Find(args)
			if err != nil || target == nil {
				target = cmd.Root()
			}
			_ = target.Help()
		},
	}
	rootCmd.SetHelpCommand(helpCmd)

	layersCmd.GroupID = "inspection"
	escapeCmd.GroupID = "inspection"
	rootCmd.AddCommand(layersCmd)
	rootCmd.AddCommand(escapeCmd)
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}
