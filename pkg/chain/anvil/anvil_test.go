package anvil_test

import (
	"context"
	"math/big"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/require"

	"github.com/storacha/devchain/pkg/accounts"
	"github.com/storacha/devchain/pkg/chain"
	"github.com/storacha/devchain/pkg/chain/anvil"
	"github.com/storacha/devchain/pkg/datadir"
	"github.com/storacha/devchain/pkg/presets"
	"github.com/storacha/devchain/pkg/testutil"
)

func TestArgs(t *testing.T) {
	cfg := chain.DefaultConfig()
	cfg.DataDir = "/data"
	cfg.AllowUnlimitedContractSize = true

	args := anvil.Args(cfg, 8545)
	require.Equal(t, []string{
		"--host", "127.0.0.1",
		"--port", "8545",
		"--chain-id", "1101",
		"--gas-limit", "20000000",
		"--mnemonic", presets.Mnemonic,
		"--state", filepath.Join("/data", anvil.StateFile),
		"--accounts", "10",
		"--balance", "200000000",
		"--disable-code-size-limit",
	}, args)

	cfg.AllowUnlimitedContractSize = false
	cfg.Accounts = 0
	cfg.DefaultBalance = nil
	require.NotContains(t, anvil.Args(cfg, 8545), "--disable-code-size-limit")
	require.NotContains(t, anvil.Args(cfg, 8545), "--balance")
}

func TestVersion(t *testing.T) {
	testCases := []struct {
		name    string
		output  string
		version string
		tooOld  bool
	}{
		{name: "current", output: "anvil Version: 1.2.3-stable\nCommit SHA: a4c1b8f\n", version: "v1.2.3-stable"},
		{name: "nightly", output: "anvil 0.2.0 (5b7e4cb 2023-12-02T00:22:26.925047000Z)\n", version: "v0.2.0"},
		{name: "too old", output: "anvil 0.1.0 (f016135 2022-07-04T00:00:00Z)", version: "v0.1.0", tooOld: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := anvil.ParseVersion(tc.output)
			require.NoError(t, err)
			require.Equal(t, tc.version, v)
			if tc.tooOld {
				require.ErrorContains(t, anvil.CheckVersion(v), anvil.MinVersion)
			} else {
				require.NoError(t, anvil.CheckVersion(v))
			}
		})
	}

	_, err := anvil.ParseVersion("anvil: command not found")
	require.Error(t, err)
}

func TestConfigureMissingBinary(t *testing.T) {
	cfg := chain.DefaultConfig()
	cfg.DataDir = t.TempDir()
	require.Error(t, anvil.New(filepath.Join(t.TempDir(), "no-anvil")).Configure(cfg))
}

func TestSimulator(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping anvil test in short mode")
	}
	if _, err := exec.LookPath(anvil.DefaultBinary); err != nil {
		t.Skip("anvil not installed")
	}

	dir, err := datadir.Resolve("")
	require.NoError(t, err)

	cfg := chain.DefaultConfig()
	cfg.Accounts = 2
	cfg.Alloc = testutil.RegistryAlloc(presets.RegistryAddress)

	srv, err := chain.Start(t.Context(), anvil.New(""), dir, chain.Options{Chain: cfg})
	require.NoError(t, err)
	defer func() { require.NoError(t, srv.Stop(context.Background())) }()

	client, err := ethclient.Dial(srv.URL())
	require.NoError(t, err)
	defer client.Close()

	chainID, err := client.ChainID(t.Context())
	require.NoError(t, err)
	require.Equal(t, new(big.Int).SetUint64(presets.DefaultNetworkID), chainID)

	code, err := client.CodeAt(t.Context(), presets.RegistryAddress, nil)
	require.NoError(t, err)
	require.Equal(t, testutil.RegistryStubCode(testutil.StubAddress), code)

	accts, err := accounts.Derive(cfg.Mnemonic, cfg.Accounts)
	require.NoError(t, err)
	for _, acct := range accts {
		balance, err := client.BalanceAt(t.Context(), acct.Address, nil)
		require.NoError(t, err)
		require.Equal(t, presets.DefaultBalance(), balance)
	}
}
