package flags

import (
	"github.com/spf13/pflag"

	"github.com/storacha/devchain/pkg/config"
	"github.com/storacha/devchain/pkg/presets"
)

// SetupChainFlags registers the flags selecting and serving a snapshot.
func SetupChainFlags(fs *pflag.FlagSet) error {
	fs.StringP(
		"file",
		"f",
		"",
		"Path to a chain snapshot (.tar.gz). Overrides --core",
	)
	fs.String(
		"core",
		presets.DefaultCore.String(),
		"Bundled core contracts snapshot to run",
	)
	fs.String(
		"data-dir",
		"",
		"Directory to keep chain state in across runs. An ephemeral directory is used when empty",
	)
	fs.String(
		"host",
		presets.DefaultHost,
		"Host to listen on",
	)
	fs.IntP(
		"port",
		"p",
		presets.DefaultPort,
		"Port to listen on",
	)
	fs.String(
		"backend",
		"geth",
		"Simulator backend: geth or anvil",
	)
	fs.Uint64(
		"network-id",
		presets.DefaultNetworkID,
		"Network id reported by the chain",
	)
	fs.Bool(
		"wrap-vm-errors",
		false,
		"Report reverts in the reference client's error envelope instead of as plain -32000 errors",
	)
	fs.String(
		"admin-addr",
		"",
		"Serve the management API (health, status, log levels, stop) on this address, e.g. 127.0.0.1:7546",
	)
	fs.Bool(
		"verbose",
		false,
		"Forward simulator logs to stdout",
	)

	bindings := []FlagBinding{
		{"file", string(config.ArchiveFile), ""},
		{"core", string(config.ArchiveCore), ""},
		{"data-dir", string(config.RepoDataDir), ""},
		{"host", string(config.ServerHost), ""},
		{"port", string(config.ServerPort), ""},
		{"backend", string(config.ChainBackend), ""},
		{"network-id", string(config.ChainNetworkID), ""},
		{"wrap-vm-errors", string(config.ChainWrapVMErrors), ""},
		{"admin-addr", string(config.AdminAddr), ""},
		{"verbose", string(config.Verbose), ""},
	}

	return AddAndBindFlags(fs, bindings)
}

// SetupSmokeTestFlags registers the flags of the post start smoke test.
func SetupSmokeTestFlags(fs *pflag.FlagSet) error {
	fs.BoolP(
		"test",
		"t",
		false,
		"Run the smoke test against the chain once it is listening, then stop",
	)

	bindings := []FlagBinding{
		{"test", string(config.SmokeTestEnabled), ""},
	}

	return AddAndBindFlags(fs, bindings)
}

// SetupAccountFlags registers the flags deriving development accounts.
func SetupAccountFlags(fs *pflag.FlagSet) error {
	fs.String(
		"mnemonic",
		presets.Mnemonic,
		"Mnemonic the accounts are derived from",
	)
	fs.IntP(
		"accounts",
		"n",
		presets.DefaultAccounts,
		"Number of accounts to derive",
	)

	bindings := []FlagBinding{
		{"mnemonic", string(config.ChainMnemonic), ""},
		{"accounts", string(config.ChainAccounts), ""},
	}

	return AddAndBindFlags(fs, bindings)
}
