// Package anvil runs the development chain as an external anvil process and proxies
// JSON-RPC requests to it.
package anvil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/devchain/pkg/chain"
)

var log = logging.Logger("chain/anvil")

const (
	DefaultBinary = "anvil"

	readyTimeout   = 30 * time.Second
	versionTimeout = 10 * time.Second
	// closeGrace is how long anvil gets to dump its state after an interrupt.
	closeGrace = 10 * time.Second
)

var _ chain.Simulator = (*Simulator)(nil)

// Simulator runs the chain in an anvil child process and proxies its JSON-RPC API.
type Simulator struct {
	binary string

	mu      sync.Mutex
	cfg     *chain.Config
	cmd     *exec.Cmd
	client  *rpc.Client
	exited  chan struct{}
	waitErr error
}

// New returns a simulator running binary, or anvil from PATH when binary is empty.
func New(binary string) *Simulator {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Simulator{binary: binary}
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
	if _, err := exec.LookPath(s.binary); err != nil {
		return fmt.Errorf("locating anvil: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()
	version, err := binaryVersion(ctx, s.binary)
	if err != nil {
		return err
	}
	if err := CheckVersion(version); err != nil {
		return err
	}
	log.Debugw("using anvil", "binary", s.binary, "version", version)
	s.cfg = &cfg
	return nil
}

func (s *Simulator) Listen(ctx context.Context) (http.Handler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg == nil {
		return nil, errors.New("simulator not configured")
	}
	if s.cmd != nil {
		return nil, errors.New("simulator already listening")
	}
	cfg := *s.cfg

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("allocating anvil port: %w", err)
	}
	endpoint := &url.URL{Scheme: "http", Host: net.JoinHostPort("127.0.0.1", strconv.Itoa(port))}

	out := cfg.LogOutput
	if out == nil {
		out = io.Discard
	}
	cmd := exec.Command(s.binary, Args(cfg, port)...)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting anvil: %w", err)
	}
	s.cmd = cmd
	s.exited = make(chan struct{})
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()
	log.Debugw("anvil started", "pid", cmd.Process.Pid, "endpoint", endpoint.String())

	client, err := s.waitReady(ctx, endpoint.String())
	if err != nil {
		s.terminate()
		return nil, err
	}
	s.client = client

	if err := applyAlloc(ctx, client, cfg.Alloc); err != nil {
		s.terminate()
		return nil, fmt.Errorf("applying alloc: %w", err)
	}

	return httputil.NewSingleHostReverseProxy(endpoint), nil
}

func (s *Simulator) waitReady(ctx context.Context, endpoint string) (*rpc.Client, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.MaxInterval = time.Second

	client, err := backoff.Retry(ctx, func() (*rpc.Client, error) {
		select {
		case <-s.exited:
			return nil, backoff.Permanent(fmt.Errorf("anvil exited: %v", s.waitErr))
		default:
		}

		client, err := rpc.DialContext(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		var chainID hexutil.Uint64
		if err := client.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxElapsedTime(readyTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("waiting for anvil: %w", err)
	}
	return client, nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}
	return s.terminate()
}

// terminate interrupts anvil so it dumps its state, killing it if it does not exit in
// time. It must be called with s.mu held.
func (s *Simulator) terminate() error {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}

	select {
	case <-s.exited:
		return nil
	default:
	}

	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		log.Warnw("failed to interrupt anvil", "error", err)
	}

	timer := time.NewTimer(closeGrace)
	defer timer.Stop()
	select {
	case <-s.exited:
		return nil
	case <-timer.C:
		log.Warnw("anvil did not exit in time, killing it", "grace", closeGrace)
		if err := s.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("killing anvil: %w", err)
		}
		<-s.exited
		return nil
	}
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
