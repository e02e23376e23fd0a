package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docpipe/docpipe/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a docpipe config file interactively",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().Bool("defaults", false, "write default config without prompting")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first to re-initialize", cfgFile)
	}

	useDefaults, _ := cmd.Flags().GetBool("defaults")

	var cfg *config.Config
	if useDefaults {
		cfg = config.DefaultConfig()
	} else {
		var err error
		cfg, err = config.RunWizard()
		if err != nil {
			return err
		}
	}

	if err := cfg.Save(cfgFile); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", cfgFile)
	return nil
}
