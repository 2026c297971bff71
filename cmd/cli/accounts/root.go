package accounts

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storacha/devchain/cmd/cli/flags"
	"github.com/storacha/devchain/cmd/cliutil/format"
	"github.com/storacha/devchain/pkg/accounts"
	"github.com/storacha/devchain/pkg/config"
	"github.com/storacha/devchain/pkg/registry"
)

var Cmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the funded development accounts",
	Long: `List the accounts derived from the chain mnemonic. Every one of them is funded on the chain.
With --rpc-url the balances are read from a running chain.`,
	Args: cobra.NoArgs,
	RunE: listAccounts,
}

func init() {
	cobra.CheckErr(flags.SetupAccountFlags(Cmd.Flags()))
	Cmd.Flags().Bool("show-keys", false, "Include the private keys")
	Cmd.Flags().String("rpc-url", "", "Read balances from the chain at this JSON-RPC endpoint")
	format.AddFlag(Cmd.Flags())
}

func listAccounts(cmd *cobra.Command, _ []string) error {
	outFormat, err := format.FromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	showKeys, err := cmd.Flags().GetBool("show-keys")
	if err != nil {
		return err
	}
	rpcURL, err := cmd.Flags().GetString("rpc-url")
	if err != nil {
		return err
	}

	set, err := accounts.Derive(
		viper.GetString(string(config.ChainMnemonic)),
		viper.GetInt(string(config.ChainAccounts)),
	)
	if err != nil {
		return fmt.Errorf("deriving accounts: %w", err)
	}

	list := &format.AccountList{Accounts: make([]format.Account, 0, len(set))}
	for _, a := range set {
		entry := format.Account{Index: a.Index, Address: a.Address.Hex()}
		if showKeys {
			entry.PrivateKey = a.PrivateKeyHex()
		}
		list.Accounts = append(list.Accounts, entry)
	}

	if rpcURL != "" {
		client, err := registry.Dial(cmd.Context(), rpcURL)
		if err != nil {
			return err
		}
		defer client.Close()
		for i, a := range set {
			bal, err := client.BalanceOf(cmd.Context(), a.Address)
			if err != nil {
				return err
			}
			list.Accounts[i].Balance = bal.String()
		}
	}

	return format.NewFormatter(outFormat, cmd.OutOrStdout()).Format(list)
}
