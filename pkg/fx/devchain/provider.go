package devchain

import (
	"context"
	"io"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/fx"

	"github.com/storacha/devchain/pkg/chain"
	"github.com/storacha/devchain/pkg/config/app"
	"github.com/storacha/devchain/pkg/devchain"
	"github.com/storacha/devchain/pkg/health"
	"github.com/storacha/devchain/pkg/smoketest"
	"github.com/storacha/devchain/pkg/telemetry"
)

var log = logging.Logger("fx/devchain")

var Module = fx.Module("devchain",
	fx.Provide(
		ProvideMetrics,
		ProvideOrchestrator,
	),
	fx.Invoke(RegisterLifecycle),
)

func ProvideMetrics() (*telemetry.Metrics, error) {
	return telemetry.NewMetrics(telemetry.Global())
}

type OrchestratorParams struct {
	fx.In

	Config    app.AppConfig
	Simulator chain.Simulator
	Options   chain.Options
	Metrics   *telemetry.Metrics
	// Progress receives the extraction progress bar.
	Progress io.Writer `name:"progress" optional:"true"`
	// Output receives the smoke test report.
	Output io.Writer `name:"output" optional:"true"`
}

func ProvideOrchestrator(p OrchestratorParams) (*devchain.Orchestrator, error) {
	return devchain.New(devchain.Config{
		Archive:   p.Config.Archive.Path,
		DataDir:   p.Config.DataDir,
		Backend:   string(p.Config.Chain.Backend),
		Server:    p.Options,
		SmokeTest: p.Config.SmokeTest.Enabled,
		Smoke: smoketest.Config{
			Contracts:       p.Config.SmokeTest.Contracts,
			Amount:          p.Config.SmokeTest.Amount,
			RegistryAddress: p.Config.SmokeTest.RegistryAddress,
			Out:             p.Output,
		},
		Progress: p.Progress,
	}, p.Simulator, devchain.WithMetrics(p.Metrics))
}

type LifecycleParams struct {
	fx.In

	Lifecycle    fx.Lifecycle
	Shutdowner   fx.Shutdowner
	Orchestrator *devchain.Orchestrator
	Checker      *health.Checker `optional:"true"`
}

// RegisterLifecycle starts the chain with the app and shuts the app down when the chain
// finishes on its own: once the smoke test completes, or the server fails. A failed
// smoke test or server exits with code 1.
func RegisterLifecycle(p LifecycleParams) {
	o, checker := p.Orchestrator, p.Checker
	stopping := make(chan struct{})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			srv, err := o.Start(ctx)
			if err != nil {
				return err
			}
			if checker != nil {
				checker.SetReady(true)
			}
			go watch(srv, o.SmokeTestDone(), stopping, p.Shutdowner, checker)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stopping)
			if checker != nil {
				checker.SetReady(false)
			}
			return o.Stop(ctx)
		},
	})
}

func watch(srv *chain.Server, smoke <-chan error, stopping <-chan struct{}, sd fx.Shutdowner, checker *health.Checker) {
	smokeDone := func(err error) error {
		if checker != nil {
			checker.RecordSmokeTest(err)
		}
		return err
	}

	var err error
	select {
	case <-stopping:
		return
	case err = <-srv.Err():
	case err = <-smoke:
		err = smokeDone(err)
	case <-srv.Done():
		if checker != nil {
			checker.SetReady(false)
		}
		// stopped by the smoke test; its result follows
		if smoke != nil {
			select {
			case err = <-smoke:
				err = smokeDone(err)
			case <-stopping:
				return
			}
		}
	}

	select {
	case <-stopping:
		return
	default:
	}

	if err != nil {
		log.Errorw("shutting down", "error", err)
		if sdErr := sd.Shutdown(fx.ExitCode(1)); sdErr != nil {
			log.Warnw("failed to shut down", "error", sdErr)
		}
		return
	}
	if sdErr := sd.Shutdown(); sdErr != nil {
		log.Warnw("failed to shut down", "error", sdErr)
	}
}
