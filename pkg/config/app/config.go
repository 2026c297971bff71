// Package app holds the typed configuration consumed by the launcher once the user
// configuration has been validated and resolved.
package app

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Backend selects the simulator implementation.
type Backend string

const (
	BackendGeth  Backend = "geth"
	BackendAnvil Backend = "anvil"
)

type AppConfig struct {
	Archive   ArchiveConfig
	DataDir   string
	Server    ServerConfig
	Chain     ChainConfig
	SmokeTest SmokeTestConfig
	Verbose   bool
	Telemetry TelemetryConfig
	Admin     AdminConfig
}

type ArchiveConfig struct {
	// Path of the snapshot to extract, either given directly or derived from the core version.
	Path string
	Core string
}

type ServerConfig struct {
	Host string
	Port int
}

type ChainConfig struct {
	Backend                    Backend
	NetworkID                  uint64
	GasLimit                   uint64
	DefaultBalance             *big.Int
	Mnemonic                   string
	Accounts                   int
	AllowUnlimitedContractSize bool
	WrapVMErrors               bool
	AnvilBinary                string
}

type SmokeTestConfig struct {
	Enabled         bool
	Amount          *big.Int
	RegistryAddress common.Address
	Contracts       []string
}

type TelemetryConfig struct {
	Endpoint string
	Insecure bool
}

type AdminConfig struct {
	// Addr is where the management API listens. It is not served when empty.
	Addr string
}
