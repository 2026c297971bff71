package admin

import (
	"go.uber.org/fx"

	"github.com/storacha/devchain/pkg/admin/httpapi/handlers"
	"github.com/storacha/devchain/pkg/devchain"
	echofx "github.com/storacha/devchain/pkg/fx/echo"
)

var Module = fx.Module("admin",
	fx.Provide(
		fx.Annotate(
			NewRoutes,
			fx.As(new(echofx.RouteRegistrar)),
			fx.ResultTags(`group:"route_registrar"`),
		),
	),
)

func NewRoutes(o *devchain.Orchestrator) *handlers.AdminRoutes {
	return handlers.NewRoutes(o)
}
