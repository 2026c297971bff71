package anvil

import (
	"math/big"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/params"

	"github.com/storacha/devchain/pkg/chain"
)

// StateFile is where anvil loads and dumps chain state, relative to the data directory.
const StateFile = "state.json"

// Args returns the command line running cfg on the loopback port.
func Args(cfg chain.Config, port int) []string {
	args := []string{
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(port),
		"--chain-id", strconv.FormatUint(cfg.NetworkID, 10),
		"--gas-limit", strconv.FormatUint(cfg.GasLimit, 10),
		"--mnemonic", cfg.Mnemonic,
		"--state", filepath.Join(cfg.DataDir, StateFile),
	}
	if cfg.Accounts > 0 {
		args = append(args, "--accounts", strconv.Itoa(cfg.Accounts))
	}
	if cfg.DefaultBalance != nil {
		// anvil takes the balance in whole ether
		ether := new(big.Int).Div(cfg.DefaultBalance, big.NewInt(params.Ether))
		args = append(args, "--balance", ether.String())
	}
	if cfg.AllowUnlimitedContractSize {
		args = append(args, "--disable-code-size-limit")
	}
	return args
}
