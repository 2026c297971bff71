package run

import (
	"context"
	"fmt"
	"io"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/storacha/devchain/cmd/cli/flags"
	"github.com/storacha/devchain/cmd/cliutil"
	"github.com/storacha/devchain/pkg/config"
	"github.com/storacha/devchain/pkg/datadir"
	"github.com/storacha/devchain/pkg/devchain"
	"github.com/storacha/devchain/pkg/fx/app"
	"github.com/storacha/devchain/pkg/telemetry"
)

var log = logging.Logger("cmd/run")

// startTimeout covers extracting the snapshot and booting the simulator.
const startTimeout = 5 * time.Minute

var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Run the development chain",
	Long: `Unpack a chain snapshot into a data directory and serve it over JSON-RPC until interrupted.
With --test, a smoke test resolves the core contracts, moves funds between two accounts and stops the chain.`,
	Args: cobra.NoArgs,
	RunE: runChain,
}

func init() {
	cobra.CheckErr(flags.SetupChainFlags(Cmd.Flags()))
	cobra.CheckErr(flags.SetupSmokeTestFlags(Cmd.Flags()))
}

func runChain(cmd *cobra.Command, _ []string) error {
	userCfg, err := config.Load[config.DevChain]()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	appCfg, err := userCfg.ToAppConfig()
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	out := cmd.OutOrStdout()
	cliutil.PrintConfig(out, appCfg)

	devchainApp := fx.New(
		// if a panic occurs during operation, recover from it and exit (somewhat) gracefully.
		fx.RecoverFromPanics(),

		// provide fx with our logger for its events logged at debug level.
		// any fx errors will still be logged at the error level.
		fx.WithLogger(func() fxevent.Logger {
			el := &fxevent.ZapLogger{Logger: log.Desugar()}
			el.UseLogLevel(zapcore.DebugLevel)
			return el
		}),

		fx.StartTimeout(startTimeout),
		fx.StopTimeout(cliutil.ShutdownTimeout),

		// the progress bar goes to stderr so stdout stays parseable
		fx.Provide(
			fx.Annotate(
				func() io.Writer { return cmd.ErrOrStderr() },
				fx.ResultTags(`name:"progress"`),
			),
			fx.Annotate(
				func() io.Writer { return out },
				fx.ResultTags(`name:"output"`),
			),
		),

		// chain dependencies:
		//  - simulator for the configured backend
		//  - orchestrator extracting the snapshot, serving and smoke testing the chain
		app.DevChainModules(appCfg),

		// Post-startup operations: print where the chain is listening
		fx.Invoke(func(lc fx.Lifecycle, o *devchain.Orchestrator) {
			hostCtx, stopHostMetrics := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if srv := o.Server(); srv != nil {
						cliutil.PrintHero(out, srv.URL(), appCfg.Chain.NetworkID)
					}
					if dir := o.Status().DataDir; dir != "" {
						if err := telemetry.StartHostMetrics(hostCtx, telemetry.Global(), dir); err != nil {
							log.Warnw("host metrics unavailable", "error", err)
						}
					}
					return nil
				},
				OnStop: func(ctx context.Context) error {
					stopHostMetrics()
					log.Infof("Shutting down devchain...this may take up to %s", cliutil.ShutdownTimeout)
					return nil
				},
			})
		}),
	)

	// an error here means a missing dependency, i.e. a developer error
	if err := devchainApp.Err(); err != nil {
		return fmt.Errorf("building devchain: %w", err)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			log.Warnw("failed to flush telemetry", "error", err)
		}
	}()
	// the data directory must not outlive a failed start or stop
	defer datadir.RemoveAll()

	startCtx, cancel := context.WithTimeout(cmd.Context(), startTimeout)
	defer cancel()
	if err := devchainApp.Start(startCtx); err != nil {
		return fmt.Errorf("starting devchain: %w", err)
	}

	// returns on SIGINT or SIGTERM, or once the chain shuts the app down itself
	sig := <-devchainApp.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cliutil.ShutdownTimeout)
	defer stopCancel()
	if err := devchainApp.Stop(stopCtx); err != nil {
		return fmt.Errorf("stopping devchain: %w", err)
	}

	if sig.ExitCode != 0 {
		return fmt.Errorf("devchain exited with code %d", sig.ExitCode)
	}
	return nil
}
