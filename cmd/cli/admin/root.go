package admin

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/storacha/devchain/cmd/cliutil"
	"github.com/storacha/devchain/pkg/admin/httpapi/client"
)

// Commands returns the commands talking to the management API of a running chain.
func Commands() []*cobra.Command {
	return []*cobra.Command{NewStatusCmd(), NewStopCmd(), NewLogCmd()}
}

func addAdminFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().String("admin-addr", cliutil.DefaultAdminAddr, "Management API address of the running chain")
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	addr, err := cmd.Flags().GetString("admin-addr")
	if err != nil {
		return nil, err
	}
	return client.NewFromAddr(addr)
}

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			dataDir := st.DataDir
			if st.Ephemeral {
				dataDir += " (ephemeral)"
			}
			cmd.Printf("State:     %s\n", st.State)
			cmd.Printf("Backend:   %s\n", st.Backend)
			cmd.Printf("URL:       %s\n", st.URL)
			cmd.Printf("Data Dir:  %s\n", dataDir)
			return nil
		},
	}
	addAdminFlag(cmd)
	return cmd
}

func NewStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.Stop(cmd.Context())
			if err != nil {
				return err
			}
			if res.Stopped {
				cmd.Println("Chain stopped")
			} else {
				cmd.Println("Chain was already stopped")
			}
			return nil
		},
	}
	addAdminFlag(cmd)
	return cmd
}

func NewLogCmd() *cobra.Command {
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Manage logging subsystems and levels of a running chain",
	}
	addAdminFlag(logCmd)

	logListCmd := &cobra.Command{
		Use:   "list",
		Short: "List all logging subsystems and their levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			prefix, err := cmd.Flags().GetString("prefix")
			if err != nil {
				return err
			}
			levels, err := c.ListLogLevels(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			systems := make([]string, 0, len(levels))
			for s := range levels {
				systems = append(systems, s)
			}
			sort.Strings(systems)
			for _, s := range systems {
				cmd.Printf("%-30s %s\n", s, levels[s])
			}
			return nil
		},
	}

	logSetLevelCmd := &cobra.Command{
		Use:   "set-level <level>",
		Short: "Set log level for a subsystem or all subsystems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := args[0]
			systems, err := cmd.Flags().GetStringSlice("system")
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}

			if len(systems) == 0 {
				changed, err := c.SetLogLevelRegex(cmd.Context(), ".*", level)
				if err != nil {
					return fmt.Errorf("setting log level: %w", err)
				}
				cmd.Printf("Set %d loggers to %s\n", len(changed), level)
				return nil
			}
			for _, system := range systems {
				if err := c.SetLogLevel(cmd.Context(), system, level); err != nil {
					return fmt.Errorf("setting log level of %s: %w", system, err)
				}
			}
			return nil
		},
	}
	logListCmd.Flags().String("prefix", "", "Only list loggers whose name starts with this prefix")
	logSetLevelCmd.Flags().StringSlice("system", []string{}, "Subsystem to target. Pass multiple times for multiple systems.")

	logCmd.AddCommand(logListCmd)
	logCmd.AddCommand(logSetLevelCmd)
	return logCmd
}
