package app

import (
	"go.uber.org/fx"

	"github.com/storacha/devchain/pkg/admin"
	"github.com/storacha/devchain/pkg/config/app"
	"github.com/storacha/devchain/pkg/fx/chain"
	"github.com/storacha/devchain/pkg/fx/devchain"
	"github.com/storacha/devchain/pkg/fx/echo"
	"github.com/storacha/devchain/pkg/health"
)

func DevChainModules(cfg app.AppConfig) fx.Option {
	var modules = []fx.Option{
		// Supply top level config, and it's sub-configs
		// this allows dependencies to be taken on, for example, app.ChainConfig
		// instead of needing to depend on the top level app.AppConfig
		fx.Supply(cfg),
		fx.Supply(cfg.Server),
		fx.Supply(cfg.Chain),
		fx.Supply(cfg.SmokeTest),
		fx.Supply(cfg.Admin),

		chain.Module,    // Provides the simulator for the configured backend and server options
		devchain.Module, // Provides the orchestrator and ties it to the app lifecycle
		health.Module,   // Provides health checks fed by the orchestrator lifecycle
		echo.Module,     // Provides the management API server, served when an admin address is set
		admin.Module,    // Provides status, stop and log level routes
	}

	return fx.Module("devchain", modules...)
}
