package chain

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/storacha/devchain/pkg/chain"
	"github.com/storacha/devchain/pkg/chain/anvil"
	"github.com/storacha/devchain/pkg/chain/geth"
	"github.com/storacha/devchain/pkg/config/app"
)

var Module = fx.Module("chain",
	fx.Provide(
		ProvideSimulator,
		ProvideServerOptions,
	),
)

// ProvideSimulator selects the simulator for the configured backend.
func ProvideSimulator(cfg app.ChainConfig) (chain.Simulator, error) {
	switch cfg.Backend {
	case app.BackendGeth, "":
		return geth.New(), nil
	case app.BackendAnvil:
		return anvil.New(cfg.AnvilBinary), nil
	default:
		return nil, fmt.Errorf("unknown chain backend: %q", cfg.Backend)
	}
}

func ProvideServerOptions(cfg app.AppConfig) chain.Options {
	return chain.Options{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Verbose: cfg.Verbose,
		Chain: chain.Config{
			DefaultBalance:             cfg.Chain.DefaultBalance,
			NetworkID:                  cfg.Chain.NetworkID,
			Mnemonic:                   cfg.Chain.Mnemonic,
			Accounts:                   cfg.Chain.Accounts,
			GasLimit:                   cfg.Chain.GasLimit,
			AllowUnlimitedContractSize: cfg.Chain.AllowUnlimitedContractSize,
			WrapVMErrors:               cfg.Chain.WrapVMErrors,
		},
	}
}
