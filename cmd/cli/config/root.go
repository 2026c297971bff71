package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storacha/devchain/cmd/cliutil"
	"github.com/storacha/devchain/pkg/config"
)

var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the devchain configuration file",
}

var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file holding the effective settings",
	Long: `Write the settings devchain would run with, defaults merged with environment and any --config file,
as TOML. The result can be edited and passed back with --config.`,
	Args: cobra.NoArgs,
	RunE: initConfig,
}

func init() {
	InitCmd.Flags().String("out", "", "Write to this file instead of stdout, "+cliutil.ConfigFileName+" is a good choice")
	InitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	Cmd.AddCommand(InitCmd)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load[config.DevChain]()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	if out == "" {
		return cfg.WriteTOML(cmd.OutOrStdout())
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(out, flag, 0644)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	if err := cfg.WriteTOML(f); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	cmd.Printf("Config written to %s\n", out)
	return nil
}
