package chain

import (
	"context"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/storacha/devchain/pkg/presets"
)

// Config is the backend independent configuration handed to a Simulator.
type Config struct {
	// DefaultBalance funds every derived account, in base units.
	DefaultBalance *big.Int
	NetworkID      uint64
	// DataDir is where the simulator persists chain state. Start fills it in from the
	// resolved data directory.
	DataDir  string
	Mnemonic string
	Accounts int
	GasLimit uint64
	// AllowUnlimitedContractSize lifts the EIP-170 code size limit where the backend
	// supports it.
	AllowUnlimitedContractSize bool
	// WrapVMErrors keeps the reference client's execution reverted error envelope. When
	// false, reverts are reported as plain -32000 errors.
	WrapVMErrors bool
	// Alloc is extra state applied on top of the funded accounts.
	Alloc types.GenesisAlloc
	// LogOutput receives simulator log lines. Start sets it from Options.
	LogOutput io.Writer
}

// DefaultConfig returns the configuration of the bundled development chain.
func DefaultConfig() Config {
	return Config{
		DefaultBalance: presets.DefaultBalance(),
		NetworkID:      presets.DefaultNetworkID,
		Mnemonic:       presets.Mnemonic,
		Accounts:       presets.DefaultAccounts,
		GasLimit:       presets.DefaultGasLimit,
	}
}

// StopFunc stops a running server. Only the first call has any effect.
type StopFunc func(ctx context.Context) error

// Options control how Start runs the chain.
type Options struct {
	Host string
	Port int
	// Verbose forwards simulator logs to LogOutput, or stdout when unset. Otherwise
	// simulator logs are discarded.
	Verbose   bool
	LogOutput io.Writer
	// OnStart is called once the server is listening, with the bound port.
	OnStart func(port int, stop StopFunc)
	Chain   Config
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = presets.DefaultHost
	}
	if o.LogOutput == nil {
		o.LogOutput = os.Stdout
	}
	if o.Chain.DefaultBalance == nil {
		o.Chain.DefaultBalance = presets.DefaultBalance()
	}
	if o.Chain.NetworkID == 0 {
		o.Chain.NetworkID = presets.DefaultNetworkID
	}
	if o.Chain.GasLimit == 0 {
		o.Chain.GasLimit = presets.DefaultGasLimit
	}
	if o.Chain.Mnemonic == "" {
		o.Chain.Mnemonic = presets.Mnemonic
	}
	return o
}
