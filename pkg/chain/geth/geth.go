// Package geth runs the development chain as an in-process go-ethereum node with a
// simulated beacon client that seals a block as soon as a transaction arrives.
package geth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/eth"
	"github.com/ethereum/go-ethereum/eth/catalyst"
	"github.com/ethereum/go-ethereum/eth/ethconfig"
	"github.com/ethereum/go-ethereum/eth/filters"
	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/p2p"
	"github.com/ethereum/go-ethereum/rpc"
	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/devchain/pkg/accounts"
	"github.com/storacha/devchain/pkg/chain"
	"github.com/storacha/devchain/pkg/presets"
)

var log = logging.Logger("chain/geth")

// instanceName names the node directory below the data directory.
const instanceName = "devchain"

var _ chain.Simulator = (*Simulator)(nil)

// Simulator is a go-ethereum dev node that reopens the chain database of a data
// directory. It serves one Configure, Listen and Close cycle.
type Simulator struct {
	mu     sync.Mutex
	cfg    *chain.Config
	stack  *node.Node
	closed bool
}

// New returns an unconfigured geth simulator.
func New() *Simulator {
	return &Simulator{}
}

func (s *Simulator) Configure(cfg chain.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg != nil {
		return errors.New("simulator already configured")
	}
	if cfg.DataDir == "" {
		return errors.New("data directory is required")
	}
	if cfg.NetworkID == 0 {
		return errors.New("network id is required")
	}
	if cfg.AllowUnlimitedContractSize {
		return errors.New("go-ethereum always enforces the contract size limit, use the anvil backend to lift it")
	}
	s.cfg = &cfg
	return nil
}

func (s *Simulator) Listen(ctx context.Context) (http.Handler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg == nil {
		return nil, errors.New("simulator not configured")
	}
	if s.stack != nil {
		return nil, errors.New("simulator already listening")
	}
	cfg := *s.cfg

	setLogOutput(cfg)

	stack, err := node.New(nodeConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating node: %w", err)
	}

	ethConf, err := ethConfig(cfg)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}

	backend, err := eth.New(stack, ethConf)
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("creating eth service: %w", err)
	}

	filterSystem := filters.NewFilterSystem(backend.APIBackend, filters.Config{})
	stack.RegisterAPIs([]rpc.API{{
		Namespace: "eth",
		Service:   filters.NewFilterAPI(filterSystem),
	}})

	beacon, err := catalyst.NewSimulatedBeacon(0, common.Address{}, backend)
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("creating simulated beacon: %w", err)
	}
	catalyst.RegisterSimulatedBeaconAPIs(stack, beacon)
	stack.RegisterLifecycle(beacon)

	if err := stack.Start(); err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("starting node: %w", err)
	}

	handler, err := stack.RPCHandler()
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("getting rpc handler: %w", err)
	}
	s.stack = stack

	head := backend.BlockChain().CurrentBlock()
	log.Infow("node started",
		"network_id", cfg.NetworkID,
		"head", head.Number,
		"data_dir", cfg.DataDir,
	)
	return handler, nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stack == nil || s.closed {
		return nil
	}
	s.closed = true
	if err := s.stack.Close(); err != nil {
		return fmt.Errorf("closing node: %w", err)
	}
	return nil
}

func nodeConfig(cfg chain.Config) *node.Config {
	conf := node.DefaultConfig
	conf.Name = instanceName
	conf.DataDir = cfg.DataDir
	conf.IPCPath = ""
	conf.HTTPHost = ""
	conf.WSHost = ""
	conf.P2P = p2p.Config{
		NoDiscovery: true,
		NoDial:      true,
		MaxPeers:    0,
	}
	return &conf
}

func ethConfig(cfg chain.Config) (*ethconfig.Config, error) {
	conf := ethconfig.Defaults
	conf.NetworkId = cfg.NetworkID
	conf.SyncMode = ethconfig.FullSync
	conf.Miner.GasCeil = cfg.GasLimit

	initialised, err := hasChainData(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if initialised {
		log.Infow("using stored genesis", "data_dir", cfg.DataDir)
		return &conf, nil
	}

	genesis, err := Genesis(cfg)
	if err != nil {
		return nil, err
	}
	conf.Genesis = genesis
	return &conf, nil
}

// Genesis builds the genesis block of a fresh chain: a development genesis with the
// configured chain id and gas limit, the derived accounts funded with the default
// balance, and cfg.Alloc on top.
func Genesis(cfg chain.Config) (*core.Genesis, error) {
	genesis := core.DeveloperGenesisBlock(cfg.GasLimit, nil)

	chainConfig := *genesis.Config
	chainConfig.ChainID = new(big.Int).SetUint64(cfg.NetworkID)
	genesis.Config = &chainConfig

	balance := cfg.DefaultBalance
	if balance == nil {
		balance = presets.DefaultBalance()
	}
	accts, err := accounts.Derive(cfg.Mnemonic, cfg.Accounts)
	if err != nil {
		return nil, fmt.Errorf("deriving accounts: %w", err)
	}
	for _, addr := range accts.Addresses() {
		genesis.Alloc[addr] = types.Account{Balance: new(big.Int).Set(balance)}
	}
	for addr, acct := range cfg.Alloc {
		genesis.Alloc[addr] = acct
	}
	return genesis, nil
}

func hasChainData(dataDir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dataDir, instanceName, "chaindata"))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking chain data: %w", err)
}

func setLogOutput(cfg chain.Config) {
	if cfg.LogOutput == nil || cfg.LogOutput == io.Discard {
		gethlog.SetDefault(gethlog.NewLogger(gethlog.DiscardHandler()))
		return
	}
	gethlog.SetDefault(gethlog.NewLogger(gethlog.NewTerminalHandlerWithLevel(cfg.LogOutput, gethlog.LevelInfo, false)))
}
