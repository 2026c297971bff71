package cli

import (
	"context"
	"os"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storacha/devchain/cmd/cli/accounts"
	"github.com/storacha/devchain/cmd/cli/admin"
	configcmd "github.com/storacha/devchain/cmd/cli/config"
	"github.com/storacha/devchain/cmd/cli/contracts"
	"github.com/storacha/devchain/cmd/cli/run"
	"github.com/storacha/devchain/cmd/cli/snapshot"
	"github.com/storacha/devchain/pkg/build"
	"github.com/storacha/devchain/pkg/config"
	"github.com/storacha/devchain/pkg/telemetry"
)

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

var log = logging.Logger("cmd")

const devchainShortDescription = `
Devchain runs a local development blockchain from a snapshot
`

const devchainLongDescription = `
Devchain - local development chain launcher
Devchain unpacks a chain snapshot with the core contracts already deployed, serves it over JSON-RPC and can smoke test it before handing it over to your tests.
`

var (
	cfgFile  string
	logLevel string
	rootCmd  = &cobra.Command{
		Use:           "devchain",
		Short:         devchainShortDescription,
		Long:          devchainLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initLogging, initConfig, initTelemetry)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "logging level")

	rootCmd.PersistentFlags().String("telemetry-endpoint", "", "OTLP/HTTP endpoint (host:port) metrics are published to")
	cobra.CheckErr(viper.BindPFlag(string(config.TelemetryEndpoint), rootCmd.PersistentFlags().Lookup("telemetry-endpoint")))

	// register all commands and their subcommands
	rootCmd.AddCommand(run.Cmd)
	rootCmd.AddCommand(snapshot.Cmd)
	rootCmd.AddCommand(accounts.Cmd)
	rootCmd.AddCommand(contracts.Cmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(admin.Commands()...)
}

func initConfig() {
	config.SetDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("DEVCHAIN")
	viper.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about when Unmarshal runs
	for _, k := range config.Keys() {
		cobra.CheckErr(viper.BindEnv(string(k)))
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		cobra.CheckErr(viper.ReadInConfig())
	}
}

func initTelemetry() {
	// bail if this has been disabled.
	if os.Getenv("DEVCHAIN_DISABLE_ANALYTICS") != "" {
		return
	}
	telCfg := telemetry.Config{
		ServiceName:    "devchain",
		ServiceVersion: build.Version,
		Endpoint:       viper.GetString(string(config.TelemetryEndpoint)),
		Insecure:       viper.GetBool(string(config.TelemetryInsecure)),
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := telemetry.Initialize(ctx, telCfg); err != nil {
		log.Warnf("failed to initialize telemetry: %s", err)
	}
}

func initLogging() {
	if logLevel != "" {
		ll, err := logging.LevelFromString(logLevel)
		cobra.CheckErr(err)
		logging.SetAllLoggers(ll)
	} else {
		logging.SetLogLevel("devchain", "info")
		logging.SetLogLevel("chain", "info")
		logging.SetLogLevel("chain/geth", "warn")
		logging.SetLogLevel("chain/anvil", "warn")
		logging.SetLogLevel("smoketest", "info")
		logging.SetLogLevel("registry", "warn")
		logging.SetLogLevel("archive", "info")
		logging.SetLogLevel("datadir", "warn")
		logging.SetLogLevel("config", "error")
		logging.SetLogLevel("telemetry", "warn")
		logging.SetLogLevel("fx/devchain", "info")
		logging.SetLogLevel("cmd", "info")
		logging.SetLogLevel("cmd/run", "info")
	}
}
