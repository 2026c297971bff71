package snapshot

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storacha/devchain/pkg/archive"
)

var Cmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Create and unpack chain snapshots",
}

var (
	PackCmd = &cobra.Command{
		Use:   "pack <data-dir> <archive>",
		Short: "Pack a chain data directory into a snapshot",
		Long:  "Pack a stopped chain's data directory into a gzip compressed tar archive that run --file accepts.",
		Args:  cobra.ExactArgs(2),
		RunE:  doPack,
	}

	ExtractCmd = &cobra.Command{
		Use:   "extract <archive> <dir>",
		Short: "Unpack a snapshot into a directory",
		Args:  cobra.ExactArgs(2),
		RunE:  doExtract,
	}
)

func init() {
	PackCmd.Flags().Bool("progress", true, "Show a progress bar")
	ExtractCmd.Flags().Bool("progress", true, "Show a progress bar")

	Cmd.AddCommand(PackCmd)
	Cmd.AddCommand(ExtractCmd)
}

func progressOpts(cmd *cobra.Command) ([]archive.Option, error) {
	show, err := cmd.Flags().GetBool("progress")
	if err != nil {
		return nil, err
	}
	if !show {
		return nil, nil
	}
	return []archive.Option{archive.WithProgress(cmd.ErrOrStderr())}, nil
}

func doPack(cmd *cobra.Command, args []string) error {
	opts, err := progressOpts(cmd)
	if err != nil {
		return err
	}
	if err := archive.Pack(args[0], args[1], opts...); err != nil {
		return fmt.Errorf("packing snapshot: %w", err)
	}
	cmd.Printf("Snapshot written to %s\n", args[1])
	return nil
}

func doExtract(cmd *cobra.Command, args []string) error {
	opts, err := progressOpts(cmd)
	if err != nil {
		return err
	}
	if err := archive.Extract(cmd.Context(), args[0], args[1], opts...); err != nil {
		return err
	}
	cmd.Printf("Snapshot extracted to %s\n", args[1])
	return nil
}
