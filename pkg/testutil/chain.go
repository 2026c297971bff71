// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/storacha/devchain/pkg/accounts"
	"github.com/storacha/devchain/pkg/chain"
	"github.com/storacha/devchain/pkg/chain/geth"
	"github.com/storacha/devchain/pkg/datadir"
)

// StubAddress is the address every stub registry resolves names to.
var StubAddress = common.HexToAddress("0x00000000000000000000000000000000000c0de5")

// RegistryStubCode is runtime bytecode that answers any call with addr as a single
// ABI encoded word.
func RegistryStubCode(addr common.Address) []byte {
	code := []byte{0x73} // PUSH20
	code = append(code, addr.Bytes()...)
	code = append(code,
		0x60, 0x00, // PUSH1 0
		0x52,       // MSTORE
		0x60, 0x20, // PUSH1 32
		0x60, 0x00, // PUSH1 0
		0xf3, // RETURN
	)
	return code
}

// RegistryAlloc places a stub registry at registry that resolves every name to
// StubAddress.
func RegistryAlloc(registry common.Address) types.GenesisAlloc {
	return types.GenesisAlloc{
		registry: {Code: RegistryStubCode(StubAddress), Balance: big.NewInt(0)},
	}
}

// Chain is an in-process development chain started for a single test.
type Chain struct {
	Server   *chain.Server
	Dir      *datadir.Dir
	Client   *ethclient.Client
	Config   chain.Config
	Accounts accounts.Set
}

// StartChain boots a go-ethereum backed chain on a free port with alloc in its
// genesis. It is stopped when the test finishes. Skipped in short mode.
func StartChain(t testing.TB, alloc types.GenesisAlloc) *Chain {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping chain test in short mode")
	}

	dir, err := datadir.Resolve("")
	if err != nil {
		t.Fatal(err)
	}

	cfg := chain.DefaultConfig()
	cfg.Accounts = 2
	cfg.Alloc = alloc

	srv, err := chain.Start(t.Context(), geth.New(), dir, chain.Options{Chain: cfg})
	if err != nil {
		_ = dir.Remove()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
	})

	client, err := ethclient.Dial(srv.URL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(client.Close)

	accts, err := accounts.Derive(cfg.Mnemonic, cfg.Accounts)
	if err != nil {
		t.Fatal(err)
	}

	return &Chain{
		Server:   srv,
		Dir:      dir,
		Client:   client,
		Config:   cfg,
		Accounts: accts,
	}
}
