package config

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/pelletier/go-toml/v2"

	"github.com/storacha/devchain/pkg/config/app"
	"github.com/storacha/devchain/pkg/presets"
)

type ArchiveConfig struct {
	File string `mapstructure:"file" flag:"file" toml:"file,omitempty"`
	Core string `mapstructure:"core" validate:"required_without=File" flag:"core" toml:"core,omitempty"`
}

type RepoConfig struct {
	// DataDir is left empty for an ephemeral chain that is removed on exit.
	DataDir string `mapstructure:"data_dir" flag:"data-dir" toml:"data_dir,omitempty"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required" flag:"host" toml:"host"`
	Port int    `mapstructure:"port" validate:"min=0,max=65535" flag:"port" toml:"port"`
}

type ChainConfig struct {
	Backend   string `mapstructure:"backend" validate:"required,oneof=geth anvil" flag:"backend" toml:"backend"`
	NetworkID uint64 `mapstructure:"network_id" validate:"required" flag:"network-id" toml:"network_id"`
	GasLimit  uint64 `mapstructure:"gas_limit" validate:"required" toml:"gas_limit"`
	// DefaultBalance is in whole native units.
	DefaultBalance string `mapstructure:"default_balance" validate:"required,number" toml:"default_balance"`
	Mnemonic       string `mapstructure:"mnemonic" validate:"required" toml:"mnemonic"`
	Accounts       int    `mapstructure:"accounts" validate:"min=1" toml:"accounts"`
	// UnlimitedContractSize lifts the contract size limit. Unset means on for anvil and
	// off for geth, which cannot lift it.
	UnlimitedContractSize *bool  `mapstructure:"unlimited_contract_size" toml:"unlimited_contract_size,omitempty"`
	WrapVMErrors          bool   `mapstructure:"wrap_vm_errors" flag:"wrap-vm-errors" toml:"wrap_vm_errors"`
	AnvilBinary           string `mapstructure:"anvil_binary" toml:"anvil_binary,omitempty"`
}

func (c ChainConfig) unlimitedContractSize() (bool, error) {
	backend := app.Backend(c.Backend)
	if c.UnlimitedContractSize == nil {
		return backend == app.BackendAnvil, nil
	}
	if *c.UnlimitedContractSize && backend == app.BackendGeth {
		return false, fmt.Errorf("%s is not supported by the geth backend, use the anvil backend", ChainUnlimitedContractSize)
	}
	return *c.UnlimitedContractSize, nil
}

type SmokeTestConfig struct {
	Enabled bool `mapstructure:"enabled" flag:"test" toml:"enabled"`
	// Amount is in whole native units.
	Amount          string   `mapstructure:"amount" validate:"required,number" toml:"amount"`
	RegistryAddress string   `mapstructure:"registry_address" validate:"required,eth_addr" toml:"registry_address"`
	Contracts       []string `mapstructure:"contracts" toml:"contracts"`
}

type TelemetryConfig struct {
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,hostname_port" toml:"endpoint,omitempty"`
	Insecure bool   `mapstructure:"insecure" toml:"insecure"`
}

type AdminConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port" flag:"admin-addr" toml:"addr,omitempty"`
}

// DevChain is the full user configuration of the launcher.
type DevChain struct {
	Archive   ArchiveConfig   `mapstructure:"archive" toml:"archive"`
	Repo      RepoConfig      `mapstructure:"repo" toml:"repo"`
	Server    ServerConfig    `mapstructure:"server" toml:"server"`
	Chain     ChainConfig     `mapstructure:"chain" toml:"chain"`
	SmokeTest SmokeTestConfig `mapstructure:"smoke_test" toml:"smoke_test"`
	Verbose   bool            `mapstructure:"verbose" flag:"verbose" toml:"verbose"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" toml:"telemetry"`
	Admin     AdminConfig     `mapstructure:"admin" toml:"admin"`
}

func (d DevChain) Validate() error {
	return validateConfig(d)
}

func (d DevChain) ToAppConfig() (app.AppConfig, error) {
	archive := d.Archive.File
	if archive == "" {
		core, err := presets.ParseCore(d.Archive.Core)
		if err != nil {
			return app.AppConfig{}, err
		}
		if archive, err = presets.ArchiveForCore(core); err != nil {
			return app.AppConfig{}, err
		}
	}

	balance, err := parseNative(d.Chain.DefaultBalance)
	if err != nil {
		return app.AppConfig{}, fmt.Errorf("chain default balance: %w", err)
	}
	amount, err := parseNative(d.SmokeTest.Amount)
	if err != nil {
		return app.AppConfig{}, fmt.Errorf("smoke test amount: %w", err)
	}
	if amount.Sign() <= 0 {
		return app.AppConfig{}, fmt.Errorf("smoke test amount must be positive")
	}
	unlimited, err := d.Chain.unlimitedContractSize()
	if err != nil {
		return app.AppConfig{}, err
	}

	return app.AppConfig{
		Archive: app.ArchiveConfig{
			Path: archive,
			Core: d.Archive.Core,
		},
		DataDir: d.Repo.DataDir,
		Server: app.ServerConfig{
			Host: d.Server.Host,
			Port: d.Server.Port,
		},
		Chain: app.ChainConfig{
			Backend:                    app.Backend(d.Chain.Backend),
			NetworkID:                  d.Chain.NetworkID,
			GasLimit:                   d.Chain.GasLimit,
			DefaultBalance:             balance,
			Mnemonic:                   d.Chain.Mnemonic,
			Accounts:                   d.Chain.Accounts,
			AllowUnlimitedContractSize: unlimited,
			WrapVMErrors:               d.Chain.WrapVMErrors,
			AnvilBinary:                d.Chain.AnvilBinary,
		},
		SmokeTest: app.SmokeTestConfig{
			Enabled:         d.SmokeTest.Enabled,
			Amount:          amount,
			RegistryAddress: common.HexToAddress(d.SmokeTest.RegistryAddress),
			Contracts:       d.SmokeTest.Contracts,
		},
		Verbose: d.Verbose,
		Telemetry: app.TelemetryConfig{
			Endpoint: d.Telemetry.Endpoint,
			Insecure: d.Telemetry.Insecure,
		},
		Admin: app.AdminConfig{
			Addr: d.Admin.Addr,
		},
	}, nil
}

// WriteTOML encodes the configuration in the format read back by --config.
func (d DevChain) WriteTOML(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(d)
}

// parseNative converts a whole number of native units into base units.
func parseNative(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v.Mul(v, big.NewInt(params.Ether)), nil
}
