package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vulnsync/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Manage the configuration file",
	Annotations: map[string]string{skipBootstrap: ""},
}

var configInitCmd = &cobra.Command{
	Use:         "init [path]",
	Short:       "Write a configuration file with default values",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipBootstrap: ""},
	RunE:        runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Write(path, config.New()); err != nil {
		return err
	}
	cmd.Printf("Wrote %s\n", path)
	return nil
}
