package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alexander-akhmetov/mat/internal/config"
)

var configWorkingDir string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mat configuration",
	Long:  `View and manage mat configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved configuration with its sources",
	Long: `Show the fully resolved configuration and the sources it came from.

Configuration is loaded from multiple sources with the following precedence:
  1. Embedded defaults (built into binary)
  2. Global config (~/.config/mat/config.yaml)
  3. Legacy .mat-config in the project directory
  4. MAT_* environment variables
  5. Local config (.mat/config.yaml)
  6. CLI flags (highest precedence)`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	configShowCmd.Flags().StringVarP(&configWorkingDir, "dir", "d", "", "Project directory (default: current directory)")
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configWorkingDir)
	if err != nil {
		return err
	}
	return writeConfig(cmd.OutOrStdout(), cfg)
}

func writeConfig(out io.Writer, cfg *config.Config) error {
	dump, err := cfg.Dump()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "# mat configuration")
	fmt.Fprintln(out, "#")
	fmt.Fprintln(out, "# Sources (in order of precedence):")
	for _, src := range cfg.Sources() {
		fmt.Fprintf(out, "#   - %s\n", src)
	}
	fmt.Fprintf(out, "# Global config: %s\n", cfg.ConfigDir())
	if cfg.LocalDir() != "" {
		fmt.Fprintf(out, "# Local config:  %s\n", cfg.LocalDir())
	} else {
		fmt.Fprintln(out, "# Local config:  (none detected)")
	}
	fmt.Fprintf(out, "# Record:        %s\n", cfg.RecordPath())
	fmt.Fprintln(out)
	fmt.Fprint(out, dump)
	return nil
}
