// Package cli is the labelprint command line: the HTTP service, one-shot
// printing from a file, and the sheet layout preview.
package cli

import (
	"fmt"

	"github.com/erp/labelprint/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

type rootOptions struct {
	configFile string
}

// BuildCLI returns the root command
func BuildCLI() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "labelprint",
		Short: "Label sheet printing with registered QR codes",
		Long: `labelprint registers one QR code per sold or inventoried unit, lays the
labels out on 4"x2" ten-up sheets and delivers them to a printer.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path (default: ./config.toml)")

	rootCmd.AddCommand(buildServeCommand(opts))
	rootCmd.AddCommand(buildPrintCommand(opts))
	rootCmd.AddCommand(buildLayoutCommand())

	return rootCmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
