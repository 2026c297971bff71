package config

import (
	"github.com/spf13/viper"

	"github.com/storacha/devchain/pkg/config/app"
	"github.com/storacha/devchain/pkg/presets"
)

// Key is a configuration key path used with Viper.
type Key string

const (
	ArchiveFile Key = "archive.file"
	ArchiveCore Key = "archive.core"

	RepoDataDir Key = "repo.data_dir"

	ServerHost Key = "server.host"
	ServerPort Key = "server.port"

	ChainBackend               Key = "chain.backend"
	ChainNetworkID             Key = "chain.network_id"
	ChainGasLimit              Key = "chain.gas_limit"
	ChainDefaultBalance        Key = "chain.default_balance"
	ChainMnemonic              Key = "chain.mnemonic"
	ChainAccounts              Key = "chain.accounts"
	ChainUnlimitedContractSize Key = "chain.unlimited_contract_size"
	ChainWrapVMErrors          Key = "chain.wrap_vm_errors"
	ChainAnvilBinary           Key = "chain.anvil_binary"

	SmokeTestEnabled         Key = "smoke_test.enabled"
	SmokeTestAmount          Key = "smoke_test.amount"
	SmokeTestRegistryAddress Key = "smoke_test.registry_address"
	SmokeTestContracts       Key = "smoke_test.contracts"

	Verbose Key = "verbose"

	TelemetryEndpoint Key = "telemetry.endpoint"
	TelemetryInsecure Key = "telemetry.insecure"

	AdminAddr Key = "admin.addr"
)

// Keys lists every configuration key, for binding environment variables.
func Keys() []Key {
	keys := make([]Key, 0, len(defaultValues)+5)
	for k := range defaultValues {
		keys = append(keys, k)
	}
	return append(keys, ArchiveFile, RepoDataDir, ChainUnlimitedContractSize, TelemetryEndpoint, AdminAddr)
}

var defaultValues = map[Key]any{
	ArchiveCore: presets.DefaultCore.String(),

	ServerHost: presets.DefaultHost,
	ServerPort: presets.DefaultPort,

	ChainBackend:        string(app.BackendGeth),
	ChainNetworkID:      presets.DefaultNetworkID,
	ChainGasLimit:       presets.DefaultGasLimit,
	ChainDefaultBalance: "200000000",
	ChainMnemonic:       presets.Mnemonic,
	ChainAccounts:       presets.DefaultAccounts,
	ChainWrapVMErrors:   false,
	ChainAnvilBinary:    "anvil",

	SmokeTestEnabled:         false,
	SmokeTestAmount:          "10",
	SmokeTestRegistryAddress: presets.RegistryAddress.Hex(),
	SmokeTestContracts:       presets.CoreContracts(),

	Verbose: false,

	TelemetryInsecure: false,
}

// SetDefaults sets all viper defaults for configuration.
// Called before viper.Unmarshal() to ensure defaults are available.
func SetDefaults() {
	for k, v := range defaultValues {
		viper.SetDefault(string(k), v)
	}
}
