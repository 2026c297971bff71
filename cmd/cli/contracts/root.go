package contracts

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/storacha/devchain/cmd/cliutil"
	"github.com/storacha/devchain/cmd/cliutil/format"
	"github.com/storacha/devchain/pkg/presets"
	"github.com/storacha/devchain/pkg/registry"
)

var Cmd = &cobra.Command{
	Use:   "contracts [name...]",
	Short: "Resolve core contract addresses on a running chain",
	Long: `Look up contract addresses through the registry of a running chain.
Without arguments every core contract is resolved.`,
	RunE: resolveContracts,
}

func init() {
	Cmd.Flags().String("rpc-url", cliutil.DefaultRPCURL, "JSON-RPC endpoint of the chain")
	Cmd.Flags().String("registry-address", presets.RegistryAddress.Hex(), "Address of the registry contract")
	format.AddFlag(Cmd.Flags())
}

func resolveContracts(cmd *cobra.Command, args []string) error {
	outFormat, err := format.FromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	rpcURL, err := cmd.Flags().GetString("rpc-url")
	if err != nil {
		return err
	}
	regAddr, err := cmd.Flags().GetString("registry-address")
	if err != nil {
		return err
	}
	if !common.IsHexAddress(regAddr) {
		return fmt.Errorf("invalid registry address: %s", regAddr)
	}

	names := args
	if len(names) == 0 {
		names = presets.CoreContracts()
	}

	client, err := registry.Dial(cmd.Context(), rpcURL, registry.WithRegistryAddress(common.HexToAddress(regAddr)))
	if err != nil {
		return err
	}
	defer client.Close()

	list := &format.ContractList{
		Registry:  common.HexToAddress(regAddr).Hex(),
		Contracts: make([]format.Contract, 0, len(names)),
	}
	var missing int
	for _, name := range names {
		addr, err := client.AddressFor(cmd.Context(), name)
		switch {
		case errors.Is(err, registry.ErrNotRegistered):
			missing++
			list.Contracts = append(list.Contracts, format.Contract{Name: name, Error: "not registered"})
		case err != nil:
			return err
		default:
			list.Contracts = append(list.Contracts, format.Contract{Name: name, Address: addr.Hex()})
		}
	}

	if err := format.NewFormatter(outFormat, cmd.OutOrStdout()).Format(list); err != nil {
		return err
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d contracts are not registered", missing, len(names))
	}
	return nil
}
