// Package registry talks to a chain's core contracts registry and moves native
// balances between development accounts.
package registry

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/devchain/pkg/presets"
)

var log = logging.Logger("registry")

const registryABI = `[{
	"constant": true,
	"inputs": [{"name": "identifier", "type": "string"}],
	"name": "getAddressForString",
	"outputs": [{"name": "", "type": "address"}],
	"payable": false,
	"stateMutability": "view",
	"type": "function"
}]`

const lookupMethod = "getAddressForString"

var ErrNotRegistered = errors.New("contract not registered")

// Backend is the subset of the ethclient API the registry client uses.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

var _ Backend = (*ethclient.Client)(nil)

// Contract is a resolved registry entry.
type Contract struct {
	Name    string
	Address common.Address
}

// Client reads and transacts against a chain through its contract registry.
type Client struct {
	backend        Backend
	address        common.Address
	abi            abi.ABI
	receiptTimeout time.Duration
	pollInterval   time.Duration
}

type Option func(*Client)

// WithRegistryAddress points the client at a registry deployed somewhere other than
// presets.RegistryAddress.
func WithRegistryAddress(addr common.Address) Option {
	return func(c *Client) {
		c.address = addr
	}
}

// WithReceiptTimeout bounds how long Transfer waits for its receipt.
func WithReceiptTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.receiptTimeout = d
	}
}

// WithPollInterval sets the initial delay between receipt lookups.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// Dial connects to the JSON-RPC endpoint at url.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	c, err := New(ec, opts...)
	if err != nil {
		ec.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an existing backend connection.
func New(backend Backend, opts ...Option) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parsing registry abi: %w", err)
	}
	c := &Client{
		backend:        backend,
		address:        presets.RegistryAddress,
		abi:            parsed,
		receiptTimeout: time.Minute,
		pollInterval:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AddressFor resolves name through the registry. A name the registry does not know
// resolves to the zero address and is reported as ErrNotRegistered.
func (c *Client) AddressFor(ctx context.Context, name string) (common.Address, error) {
	data, err := c.abi.Pack(lookupMethod, name)
	if err != nil {
		return common.Address{}, fmt.Errorf("packing lookup of %s: %w", name, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("looking up %s: %w", name, err)
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("%w: %s (no registry at %s)", ErrNotRegistered, name, c.address)
	}

	res, err := c.abi.Unpack(lookupMethod, out)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpacking lookup of %s: %w", name, err)
	}
	addr := *abi.ConvertType(res[0], new(common.Address)).(*common.Address)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return addr, nil
}

// Addresses resolves every name in order, stopping at the first failure.
func (c *Client) Addresses(ctx context.Context, names []string) ([]Contract, error) {
	out := make([]Contract, 0, len(names))
	for _, name := range names {
		addr, err := c.AddressFor(ctx, name)
		if err != nil {
			return out, err
		}
		out = append(out, Contract{Name: name, Address: addr})
	}
	return out, nil
}

// BalanceOf returns the native balance of addr at the latest block.
func (c *Client) BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("getting balance of %s: %w", addr, err)
	}
	return bal, nil
}

// Transfer sends amount from the account of key to to and waits until the transfer
// is included in a block.
func (c *Client) Transfer(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, amount *big.Int) (*types.Receipt, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting chain ID: %w", err)
	}
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("getting nonce of %s: %w", from, err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting gas price: %w", err)
	}

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      params.TxGas,
		GasPrice: gasPrice,
	}), types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("signing transfer: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("sending transfer: %w", err)
	}
	log.Debugw("transfer submitted", "tx", tx.Hash(), "from", from, "to", to, "amount", amount)

	return c.WaitForReceipt(ctx, tx.Hash())
}

// WaitForReceipt polls for the receipt of hash with exponential backoff. A reverted
// transaction is an error.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.pollInterval
	eb.MaxInterval = 2 * time.Second

	receipt, err := backoff.Retry(ctx, func() (*types.Receipt, error) {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err != nil {
			// not mined yet
			return nil, err
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			return nil, backoff.Permanent(fmt.Errorf("transaction %s failed with status %d", hash, receipt.Status))
		}
		return receipt, nil
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxElapsedTime(c.receiptTimeout),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Debugw("transaction not yet confirmed", "tx", hash, "retry_in", d)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("waiting for transaction %s: %w", hash, err)
	}
	return receipt, nil
}

func (c *Client) Close() {
	c.backend.Close()
}
