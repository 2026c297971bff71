// Package smoketest checks that a freshly started chain is usable: the core contracts
// resolve through the registry and native transfers between development accounts
// settle.
package smoketest

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	"github.com/storacha/devchain/pkg/accounts"
	"github.com/storacha/devchain/pkg/chain"
	"github.com/storacha/devchain/pkg/presets"
	"github.com/storacha/devchain/pkg/registry"
)

//go:generate mockgen -destination=../../internal/mocks/registry.go -package=mocks github.com/storacha/devchain/pkg/smoketest Registry

var log = logging.Logger("smoketest")

// Registry is what a run needs from the chain.
type Registry interface {
	AddressFor(ctx context.Context, name string) (common.Address, error)
	BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error)
	Transfer(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, amount *big.Int) (*types.Receipt, error)
	Close()
}

// Dialer connects a Registry to the JSON-RPC endpoint at url.
type Dialer func(ctx context.Context, url string) (Registry, error)

// Config describes a smoke test run.
type Config struct {
	// Accounts must hold at least two accounts: the first sends, the second receives.
	Accounts        accounts.Set
	Contracts       []string
	Amount          *big.Int
	RegistryAddress common.Address
	// Host the chain is reached on, 127.0.0.1 when empty.
	Host string
	// Out receives the resolved addresses and balances, stdout when nil.
	Out io.Writer
}

// Runner checks a freshly started chain: contract resolution, balances and a native
// transfer between the first two accounts.
type Runner struct {
	cfg  Config
	dial Dialer
}

type Option func(*Runner)

// WithDialer replaces the registry client the runner connects with.
func WithDialer(d Dialer) Option {
	return func(r *Runner) {
		r.dial = d
	}
}

// New validates cfg and returns a Runner that dials the chain with the default dialer
// unless an option replaces it.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if len(cfg.Accounts) < 2 {
		return nil, fmt.Errorf("smoke test needs two accounts, got %d", len(cfg.Accounts))
	}
	if cfg.Amount == nil {
		cfg.Amount = presets.SmokeTransferAmount()
	}
	if cfg.Amount.Sign() <= 0 {
		return nil, errors.New("transfer amount must be positive")
	}
	if cfg.Contracts == nil {
		cfg.Contracts = presets.CoreContracts()
	}
	if cfg.RegistryAddress == (common.Address{}) {
		cfg.RegistryAddress = presets.RegistryAddress
	}
	if cfg.Host == "" {
		cfg.Host = presets.DefaultHost
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	r := &Runner{cfg: cfg}
	r.dial = func(ctx context.Context, url string) (Registry, error) {
		c, err := registry.Dial(ctx, url, registry.WithRegistryAddress(cfg.RegistryAddress))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run checks the chain listening on port and calls stop when every check passed. On
// failure a *SmokeTestError is returned and stop is not called.
func (r *Runner) Run(ctx context.Context, port int, stop chain.StopFunc) error {
	url := "http://" + net.JoinHostPort(r.cfg.Host, strconv.Itoa(port))
	log.Infow("connecting to registry", "url", url, "registry", r.cfg.RegistryAddress)

	reg, err := r.dial(ctx, url)
	if err != nil {
		return &SmokeTestError{Step: StepConnect, Err: err}
	}
	defer reg.Close()

	if err := r.resolve(ctx, reg); err != nil {
		return &SmokeTestError{Step: StepResolve, Err: err}
	}

	sender, receiver := r.cfg.Accounts[0], r.cfg.Accounts[1]

	senderBefore, receiverBefore, err := balances(ctx, reg, sender.Address, receiver.Address)
	if err != nil {
		return &SmokeTestError{Step: StepBalances, Err: err}
	}
	r.printBalances("before transfer", sender.Address, senderBefore, receiver.Address, receiverBefore)

	log.Infow("transferring", "amount", r.cfg.Amount, "from", sender.Address, "to", receiver.Address)
	receipt, err := reg.Transfer(ctx, sender.PrivateKey, receiver.Address, r.cfg.Amount)
	if err != nil {
		return &SmokeTestError{Step: StepTransfer, Err: err}
	}
	log.Infow("transfer confirmed", "tx", receipt.TxHash, "block", receipt.BlockNumber)

	senderAfter, receiverAfter, err := balances(ctx, reg, sender.Address, receiver.Address)
	if err != nil {
		return &SmokeTestError{Step: StepBalances, Err: err}
	}
	r.printBalances("after transfer", sender.Address, senderAfter, receiver.Address, receiverAfter)

	if err := verify(r.cfg.Amount, senderBefore, senderAfter, receiverBefore, receiverAfter); err != nil {
		return &SmokeTestError{Step: StepVerify, Err: err}
	}

	log.Info("smoke test passed, stopping")
	if err := stop(ctx); err != nil {
		return &SmokeTestError{Step: StepStop, Err: err}
	}
	return nil
}

func (r *Runner) resolve(ctx context.Context, reg Registry) error {
	log.Infow("resolving core contracts", "count", len(r.cfg.Contracts))
	for _, name := range r.cfg.Contracts {
		addr, err := reg.AddressFor(ctx, name)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		if addr == (common.Address{}) {
			return fmt.Errorf("resolving %s: %w", name, registry.ErrNotRegistered)
		}
		_, _ = fmt.Fprintf(r.cfg.Out, "%s: %s\n", name, addr.Hex())
	}
	return nil
}

func (r *Runner) printBalances(label string, sender common.Address, senderBal *big.Int, receiver common.Address, receiverBal *big.Int) {
	log.Infow("balances "+label, "sender", senderBal, "receiver", receiverBal)
	_, _ = fmt.Fprintf(r.cfg.Out, "Balances %s:\n  %s: %s\n  %s: %s\n", label, sender.Hex(), senderBal, receiver.Hex(), receiverBal)
}

func balances(ctx context.Context, reg Registry, a, b common.Address) (*big.Int, *big.Int, error) {
	var balA, balB *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		balA, err = reg.BalanceOf(gctx, a)
		return err
	})
	g.Go(func() (err error) {
		balB, err = reg.BalanceOf(gctx, b)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return balA, balB, nil
}

// verify checks the receiver gained exactly amount and the sender lost at least
// amount, the excess being fees.
func verify(amount, senderBefore, senderAfter, receiverBefore, receiverAfter *big.Int) error {
	wantReceiver := new(big.Int).Add(receiverBefore, amount)
	if receiverAfter.Cmp(wantReceiver) != 0 {
		return fmt.Errorf("receiver balance is %s, expected %s", receiverAfter, wantReceiver)
	}
	maxSender := new(big.Int).Sub(senderBefore, amount)
	if senderAfter.Cmp(maxSender) > 0 {
		return fmt.Errorf("sender balance is %s, expected at most %s", senderAfter, maxSender)
	}
	return nil
}
