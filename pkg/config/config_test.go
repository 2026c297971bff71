package config

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/storacha/devchain/pkg/config/app"
	"github.com/storacha/devchain/pkg/presets"
)

func loadDefaults(t *testing.T) DevChain {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	cfg, err := Load[DevChain]()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadDefaults(t)
	require.Equal(t, presets.DefaultHost, cfg.Server.Host)
	require.Equal(t, presets.DefaultPort, cfg.Server.Port)
	require.Equal(t, "geth", cfg.Chain.Backend)
	require.Equal(t, presets.DefaultNetworkID, cfg.Chain.NetworkID)
	require.Equal(t, presets.Mnemonic, cfg.Chain.Mnemonic)
	require.Nil(t, cfg.Chain.UnlimitedContractSize)
	require.False(t, cfg.Chain.WrapVMErrors)
	require.False(t, cfg.SmokeTest.Enabled)
	require.ElementsMatch(t, presets.CoreContracts(), cfg.SmokeTest.Contracts)
	require.Empty(t, cfg.Repo.DataDir)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set(string(ServerPort), 8545)
	viper.Set(string(ChainBackend), "anvil")
	viper.Set(string(RepoDataDir), "/tmp/chain")

	cfg, err := Load[DevChain]()
	require.NoError(t, err)
	require.Equal(t, 8545, cfg.Server.Port)
	require.Equal(t, "anvil", cfg.Chain.Backend)
	require.Equal(t, "/tmp/chain", cfg.Repo.DataDir)

	viper.Set(string(ChainUnlimitedContractSize), "false")
	cfg, err = Load[DevChain]()
	require.NoError(t, err)
	require.NotNil(t, cfg.Chain.UnlimitedContractSize)
	require.False(t, *cfg.Chain.UnlimitedContractSize)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*DevChain)
	}{
		{"unknown backend", func(c *DevChain) { c.Chain.Backend = "ganache" }},
		{"port out of range", func(c *DevChain) { c.Server.Port = 70000 }},
		{"no host", func(c *DevChain) { c.Server.Host = "" }},
		{"no archive", func(c *DevChain) { c.Archive = ArchiveConfig{} }},
		{"bad registry address", func(c *DevChain) { c.SmokeTest.RegistryAddress = "0x1234" }},
		{"fractional balance", func(c *DevChain) { c.Chain.DefaultBalance = "1.5" }},
		{"no network id", func(c *DevChain) { c.Chain.NetworkID = 0 }},
		{"bad telemetry endpoint", func(c *DevChain) { c.Telemetry.Endpoint = "not a host" }},
		{"bad admin address", func(c *DevChain) { c.Admin.Addr = "localhost" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tc.modify(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	t.Run("archive file without core", func(t *testing.T) {
		cfg := loadDefaults(t)
		cfg.Archive = ArchiveConfig{File: "chain.tar.gz"}
		require.NoError(t, cfg.Validate())
	})
}

func TestToAppConfig(t *testing.T) {
	t.Setenv(presets.ChainsDirEnvVar, "/opt/chains")
	cfg := loadDefaults(t)

	ac, err := cfg.ToAppConfig()
	require.NoError(t, err)
	require.Equal(t, "/opt/chains/v1.tar.gz", ac.Archive.Path)
	require.Equal(t, app.BackendGeth, ac.Chain.Backend)
	require.Equal(t, 0, presets.DefaultBalance().Cmp(ac.Chain.DefaultBalance))
	require.Equal(t, 0, presets.SmokeTransferAmount().Cmp(ac.SmokeTest.Amount))
	require.Equal(t, presets.RegistryAddress, ac.SmokeTest.RegistryAddress)
	require.False(t, ac.Chain.AllowUnlimitedContractSize)

	t.Run("explicit archive", func(t *testing.T) {
		cfg := loadDefaults(t)
		cfg.Archive.File = "/data/custom.tar.gz"
		ac, err := cfg.ToAppConfig()
		require.NoError(t, err)
		require.Equal(t, "/data/custom.tar.gz", ac.Archive.Path)
	})

	t.Run("unknown core", func(t *testing.T) {
		cfg := loadDefaults(t)
		cfg.Archive.Core = "v9"
		_, err := cfg.ToAppConfig()
		require.Error(t, err)
	})

	t.Run("contract size limit follows the backend", func(t *testing.T) {
		cfg := loadDefaults(t)
		cfg.Chain.Backend = string(app.BackendAnvil)
		ac, err := cfg.ToAppConfig()
		require.NoError(t, err)
		require.True(t, ac.Chain.AllowUnlimitedContractSize)

		off := false
		cfg.Chain.UnlimitedContractSize = &off
		ac, err = cfg.ToAppConfig()
		require.NoError(t, err)
		require.False(t, ac.Chain.AllowUnlimitedContractSize)
	})

	t.Run("unlimited contract size on geth", func(t *testing.T) {
		cfg := loadDefaults(t)
		on := true
		cfg.Chain.UnlimitedContractSize = &on
		_, err := cfg.ToAppConfig()
		require.ErrorContains(t, err, "geth backend")
	})

	t.Run("zero amount", func(t *testing.T) {
		cfg := loadDefaults(t)
		cfg.SmokeTest.Amount = "0"
		_, err := cfg.ToAppConfig()
		require.Error(t, err)
	})
}

func TestWriteTOML(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Chain.DefaultBalance = "42"

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteTOML(&buf))
	require.Contains(t, buf.String(), "[chain]")
	require.Contains(t, buf.String(), "[smoke_test]")

	viper.Reset()
	viper.SetConfigType("toml")
	require.NoError(t, viper.ReadConfig(&buf))
	read, err := Load[DevChain]()
	require.NoError(t, err)
	require.Equal(t, cfg, read)

	ac, err := read.ToAppConfig()
	require.NoError(t, err)
	want := new(big.Int).Mul(big.NewInt(42), big.NewInt(params.Ether))
	require.Equal(t, 0, want.Cmp(ac.Chain.DefaultBalance))
}
