package presets

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/samber/lo"
)

// Core identifies a bundled core-contracts snapshot.
type Core int

const (
	V1 Core = iota
)

// String returns the string representation of the core version
func (c Core) String() string {
	switch c {
	case V1:
		return "v1"
	default:
		return "unknown"
	}
}

// ParseCore parses a string into a Core version
func ParseCore(s string) (Core, error) {
	switch s {
	case "v1":
		return V1, nil
	default:
		return V1, fmt.Errorf("unknown core contracts version: %s (supported: v1)", s)
	}
}

const DefaultCore = V1

// Setting this env var overrides the directory bundled snapshots are read from.
var ChainsDirEnvVar = "DEVCHAIN_CHAINS_DIR"

// ArchiveForCore returns the path of the bundled snapshot for core. Snapshots live in
// a "chains" directory that sits next to the directory holding the executable.
func ArchiveForCore(core Core) (string, error) {
	dir := os.Getenv(ChainsDirEnvVar)
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locating executable: %w", err)
		}
		dir = filepath.Join(filepath.Dir(exe), "..", "chains")
	}
	return filepath.Join(dir, core.String()+".tar.gz"), nil
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 7545

	// DefaultNetworkID is deliberately not the id of any public network.
	DefaultNetworkID uint64 = 1101
	DefaultGasLimit  uint64 = 20_000_000

	DefaultBalanceEther int64 = 200_000_000
	DefaultAccounts           = 10

	// Mnemonic is the seed phrase the bundled snapshots were generated with.
	Mnemonic = "concert load couple harbor equip island argue ramp clarify fence smart topic"
)

// DefaultBalance is DefaultBalanceEther expressed in base units.
func DefaultBalance() *big.Int {
	return new(big.Int).Mul(big.NewInt(DefaultBalanceEther), big.NewInt(params.Ether))
}

// SmokeTransferAmount is the 10 native units moved by the smoke test, in base units.
func SmokeTransferAmount() *big.Int {
	return new(big.Int).Mul(big.NewInt(10), big.NewInt(params.Ether))
}

// RegistryAddress is where the core contracts registry is deployed in every snapshot.
var RegistryAddress = common.HexToAddress("0x000000000000000000000000000000000000ce10")

// AllContracts lists every identifier the registry knows about.
var AllContracts = []string{
	"Accounts",
	"Attestations",
	"BlockchainParameters",
	"DoubleSigningSlasher",
	"DowntimeSlasher",
	"Election",
	"EpochRewards",
	"ERC20",
	"Escrow",
	"Exchange",
	"FeeCurrencyWhitelist",
	"Freezer",
	"GasPriceMinimum",
	"GoldToken",
	"Governance",
	"GovernanceApproverMultiSig",
	"GovernanceSlasher",
	"LockedGold",
	"MultiSig",
	"Random",
	"Registry",
	"Reserve",
	"ReserveSpenderMultiSig",
	"SortedOracles",
	"StableToken",
	"TransferWhitelist",
	"Validators",
}

// PerInstanceContracts are templates deployed once per use, not globally, so the
// registry holds no entry for them.
var PerInstanceContracts = []string{
	"ERC20",
	"MultiSig",
	"GovernanceApproverMultiSig",
	"ReserveSpenderMultiSig",
	"TransferWhitelist",
}

// CoreContracts are the identifiers expected to resolve in every snapshot.
func CoreContracts() []string {
	return lo.Without(AllContracts, PerInstanceContracts...)
}
