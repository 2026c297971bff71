package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/storacha/devchain/pkg/admin/httpapi"
	echofx "github.com/storacha/devchain/pkg/fx/echo"
)

var _ echofx.RouteRegistrar = (*AdminRoutes)(nil)

// AdminRoutes serves the management API. It has no authentication and is meant to be
// bound to a loopback address.
type AdminRoutes struct {
	chain *ChainHandler
	log   *LogHandler
}

func NewRoutes(chain Chain) *AdminRoutes {
	return &AdminRoutes{chain: NewChainHandler(chain), log: NewLogHandler()}
}

func (a *AdminRoutes) RegisterRoutes(e *echo.Echo) {
	adminGroup := e.Group(httpapi.AdminRoutePath)

	logGroup := adminGroup.Group(httpapi.LogRoutePath)
	logGroup.GET("/list", a.log.List)
	logGroup.POST("/set", a.log.Set)
	logGroup.POST("/set-regex", a.log.SetRegex)

	chainGroup := adminGroup.Group(httpapi.ChainRoutePath)
	chainGroup.GET("/status", a.chain.Status)
	chainGroup.POST("/stop", a.chain.Stop)
}
