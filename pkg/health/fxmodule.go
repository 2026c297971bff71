package health

import (
	"go.uber.org/fx"

	"github.com/storacha/devchain/pkg/config/app"
	echofx "github.com/storacha/devchain/pkg/fx/echo"
)

// NewCheckerFromConfig creates a Checker for the configured backend and smoke test.
func NewCheckerFromConfig(cfg app.AppConfig) *Checker {
	return NewChecker(string(cfg.Chain.Backend), cfg.SmokeTest.Enabled)
}

// Module provides health check functionality
var Module = fx.Module("health",
	fx.Provide(
		NewCheckerFromConfig,
		fx.Annotate(
			NewHandler,
			fx.As(new(echofx.RouteRegistrar)),
			fx.ResultTags(`group:"route_registrar"`),
		),
	),
)
