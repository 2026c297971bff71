package registry_test

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/storacha/devchain/pkg/presets"
	"github.com/storacha/devchain/pkg/registry"
	"github.com/storacha/devchain/pkg/testutil"
)

const lookupABI = `[{"inputs":[{"name":"identifier","type":"string"}],"name":"getAddressForString","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

// hardhat account 0
const senderKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeBackend struct {
	t        *testing.T
	abi      abi.ABI
	contract common.Address
	entries  map[string]common.Address

	mu       sync.Mutex
	sent     []*types.Transaction
	pending  int
	status   uint64
	closed   bool
	balances map[common.Address]*big.Int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	parsed, err := abi.JSON(strings.NewReader(lookupABI))
	require.NoError(t, err)
	return &fakeBackend{
		t:        t,
		abi:      parsed,
		contract: presets.RegistryAddress,
		entries:  map[string]common.Address{},
		status:   types.ReceiptStatusSuccessful,
		balances: map[common.Address]*big.Int{},
	}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1101), nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || *msg.To != f.contract {
		return nil, nil
	}
	method := f.abi.Methods["getAddressForString"]
	require.Equal(f.t, method.ID, msg.Data[:4])
	args, err := method.Inputs.Unpack(msg.Data[4:])
	require.NoError(f.t, err)
	return method.Outputs.Pack(f.entries[args[0].(string)])
}

func (f *fakeBackend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	if bal, ok := f.balances[account]; ok {
		return bal, nil
	}
	return nil, errors.New("unknown account")
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(params.GWei), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending > 0 {
		f.pending--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: hash, Status: f.status}, nil
}

func (f *fakeBackend) Close() {
	f.closed = true
}

func TestAddressFor(t *testing.T) {
	backend := newFakeBackend(t)
	accountsAddr := common.HexToAddress("0x000000000000000000000000000000000000a001")
	backend.entries["Accounts"] = accountsAddr

	client, err := registry.New(backend)
	require.NoError(t, err)

	addr, err := client.AddressFor(t.Context(), "Accounts")
	require.NoError(t, err)
	require.Equal(t, accountsAddr, addr)

	_, err = client.AddressFor(t.Context(), "Missing")
	require.ErrorIs(t, err, registry.ErrNotRegistered)

	client.Close()
	require.True(t, backend.closed)
}

func TestAddressForWithoutRegistry(t *testing.T) {
	backend := newFakeBackend(t)
	other := common.HexToAddress("0x0000000000000000000000000000000000000bad")

	client, err := registry.New(backend, registry.WithRegistryAddress(other))
	require.NoError(t, err)

	_, err = client.AddressFor(t.Context(), "Accounts")
	require.ErrorIs(t, err, registry.ErrNotRegistered)
}

func TestAddresses(t *testing.T) {
	backend := newFakeBackend(t)
	backend.entries["Accounts"] = common.HexToAddress("0x01")
	backend.entries["Election"] = common.HexToAddress("0x02")

	client, err := registry.New(backend)
	require.NoError(t, err)

	got, err := client.Addresses(t.Context(), []string{"Accounts", "Election"})
	require.NoError(t, err)
	require.Equal(t, []registry.Contract{
		{Name: "Accounts", Address: common.HexToAddress("0x01")},
		{Name: "Election", Address: common.HexToAddress("0x02")},
	}, got)

	got, err = client.Addresses(t.Context(), []string{"Accounts", "Missing", "Election"})
	require.ErrorIs(t, err, registry.ErrNotRegistered)
	require.Len(t, got, 1)
}

func TestTransfer(t *testing.T) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(senderKey, "0x"))
	require.NoError(t, err)
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	amount := presets.SmokeTransferAmount()

	t.Run("waits for receipt", func(t *testing.T) {
		backend := newFakeBackend(t)
		backend.pending = 2

		client, err := registry.New(backend, registry.WithPollInterval(time.Millisecond))
		require.NoError(t, err)

		receipt, err := client.Transfer(t.Context(), key, to, amount)
		require.NoError(t, err)
		require.Len(t, backend.sent, 1)

		tx := backend.sent[0]
		require.Equal(t, tx.Hash(), receipt.TxHash)
		require.Equal(t, to, *tx.To())
		require.Equal(t, amount, tx.Value())
		require.Equal(t, params.TxGas, tx.Gas())

		from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1101)), tx)
		require.NoError(t, err)
		require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), from)
	})

	t.Run("failed transaction", func(t *testing.T) {
		backend := newFakeBackend(t)
		backend.status = types.ReceiptStatusFailed

		client, err := registry.New(backend)
		require.NoError(t, err)

		_, err = client.Transfer(t.Context(), key, to, amount)
		require.ErrorContains(t, err, "failed with status 0")
	})

	t.Run("gives up after timeout", func(t *testing.T) {
		backend := newFakeBackend(t)
		backend.pending = 1 << 30

		client, err := registry.New(backend,
			registry.WithPollInterval(time.Millisecond),
			registry.WithReceiptTimeout(50*time.Millisecond),
		)
		require.NoError(t, err)

		_, err = client.Transfer(t.Context(), key, to, amount)
		require.Error(t, err)
	})
}

func TestBalanceOf(t *testing.T) {
	backend := newFakeBackend(t)
	addr := common.HexToAddress("0x01")
	backend.balances[addr] = big.NewInt(5)

	client, err := registry.New(backend)
	require.NoError(t, err)

	bal, err := client.BalanceOf(t.Context(), addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5), bal)

	_, err = client.BalanceOf(t.Context(), common.HexToAddress("0x02"))
	require.Error(t, err)
}

func TestClientAgainstChain(t *testing.T) {
	c := testutil.StartChain(t, testutil.RegistryAlloc(presets.RegistryAddress))

	client, err := registry.Dial(t.Context(), c.Server.URL())
	require.NoError(t, err)
	defer client.Close()

	addr, err := client.AddressFor(t.Context(), "Election")
	require.NoError(t, err)
	require.Equal(t, testutil.StubAddress, addr)

	sender, receiver := c.Accounts[0], c.Accounts[1]
	amount := presets.SmokeTransferAmount()

	before, err := client.BalanceOf(t.Context(), receiver.Address)
	require.NoError(t, err)

	_, err = client.Transfer(t.Context(), sender.PrivateKey, receiver.Address, amount)
	require.NoError(t, err)

	after, err := client.BalanceOf(t.Context(), receiver.Address)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(before, amount), after)
}
