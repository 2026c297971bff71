package echo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	logging "github.com/ipfs/go-log/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"

	"github.com/storacha/devchain/pkg/config/app"
)

var log = logging.Logger("fx/echo")

var Module = fx.Module("echo",
	fx.Provide(
		NewEcho,
	),
	fx.Invoke(
		RegisterRoutes,
		StartEchoServer,
	),
)

// RouteRegistrar defines the interface for services that register Echo routes
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo)
}

// NewEcho creates a new Echo instance with default middleware
func NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(otelecho.Middleware("devchain-admin"))
	e.Use(ErrorHandler(logging.Logger("admin")))
	e.Use(middleware.Recover())

	return e
}

// EchoServer wraps Echo with fx lifecycle management
type EchoServer struct {
	echo *echo.Echo
	addr string
}

// StartEchoServer serves e on the admin address with the app lifecycle. Nothing is
// served when no address is configured.
func StartEchoServer(cfg app.AdminConfig, e *echo.Echo, lc fx.Lifecycle) (*EchoServer, error) {
	server := &EchoServer{
		echo: e,
		addr: cfg.Addr,
	}
	if cfg.Addr == "" {
		return server, nil
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// bind up front so a taken address fails the start
			l, err := (&net.ListenConfig{}).Listen(ctx, "tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("binding management API to %s: %w", cfg.Addr, err)
			}
			e.Listener = l
			server.addr = l.Addr().String()
			log.Infof("Starting management API on %s", server.addr)

			go func() {
				if err := e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("management API error: %v", err)
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down management API")
			return e.Shutdown(ctx)
		},
	})

	return server, nil
}

// RouteParams collects all route registrars
type RouteParams struct {
	fx.In

	Registrars []RouteRegistrar `group:"route_registrar"`
}

// RegisterRoutes registers all routes from collected registrars
func RegisterRoutes(e *echo.Echo, params RouteParams) {
	log.Debugf("Registering routes from %d registrars", len(params.Registrars))

	for _, registrar := range params.Registrars {
		registrar.RegisterRoutes(e)
	}
}

// Address returns the server's listening address
func (s *EchoServer) Address() string {
	return s.addr
}
