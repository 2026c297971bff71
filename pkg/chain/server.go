// Package chain runs a simulated EVM chain behind a JSON-RPC HTTP listener and owns
// its start and stop lifecycle.
package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/multierr"

	"github.com/storacha/devchain/pkg/datadir"
)

var log = logging.Logger("chain")

// State is the lifecycle state of a Server.
type State int32

const (
	Running State = iota
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Server is a running chain bound to one port. A stopped Server cannot be restarted.
type Server struct {
	sim  Simulator
	dir  *datadir.Dir
	srv  *http.Server
	host string
	port int

	state atomic.Int32
	done  chan struct{}
	errs  chan error
}

// Start binds the listener, boots sim against dir and serves its JSON-RPC API. When
// the port cannot be bound a *PortBindError is returned and sim is left untouched.
func Start(ctx context.Context, sim Simulator, dir *datadir.Dir, opts Options) (*Server, error) {
	opts = opts.withDefaults()

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, &PortBindError{Addr: addr, Port: opts.Port, Err: err}
	}

	cfg := opts.Chain
	cfg.DataDir = dir.Path
	cfg.LogOutput = io.Discard
	if opts.Verbose {
		cfg.LogOutput = opts.LogOutput
	}

	if err := sim.Configure(cfg); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("configuring simulator: %w", err)
	}

	port := l.Addr().(*net.TCPAddr).Port
	log.Infow("server starting", "addr", l.Addr().String(), "data_dir", dir.Path, "ephemeral", dir.Ephemeral)

	handler, err := sim.Listen(ctx)
	if err != nil {
		_ = l.Close()
		return nil, multierr.Append(fmt.Errorf("starting simulator: %w", err), sim.Close())
	}

	s := &Server{
		sim:  sim,
		dir:  dir,
		host: opts.Host,
		port: port,
		done: make(chan struct{}),
		errs: make(chan error, 1),
		srv: &http.Server{
			Handler:           RPCErrorMiddleware(handler, cfg.WrapVMErrors),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	go s.serve(l)

	log.Infow("server started", "url", s.URL())

	if opts.OnStart != nil {
		opts.OnStart(port, s.Stop)
	}
	return s, nil
}

func (s *Server) serve(l net.Listener) {
	err := s.srv.Serve(l)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	log.Errorw("server failed", "error", err)
	s.errs <- err
}

// Port is the port the server is bound to.
func (s *Server) Port() int {
	return s.port
}

// Dir is the data directory the chain runs on.
func (s *Server) Dir() *datadir.Dir {
	return s.dir
}

// URL is the JSON-RPC endpoint of the server.
func (s *Server) URL() string {
	return "http://" + net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// State reports where the server is in its lifecycle.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Err delivers an error if the server stops serving for any reason other than Stop.
func (s *Server) Err() <-chan error {
	return s.errs
}

// Done is closed once Stop has finished tearing the server down.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Stop closes the listener, shuts the simulator down and removes an ephemeral data
// directory. Only the first call does this; any later or concurrent call returns nil
// without waiting.
func (s *Server) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		return nil
	}
	defer close(s.done)

	log.Infow("server stopping", "port", s.port)

	var err error
	if shutdownErr := s.srv.Shutdown(ctx); shutdownErr != nil {
		err = multierr.Append(err, fmt.Errorf("shutting down listener: %w", shutdownErr))
		_ = s.srv.Close()
	}
	if closeErr := s.sim.Close(); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("closing simulator: %w", closeErr))
	}
	if s.dir != nil {
		err = multierr.Append(err, s.dir.Remove())
	}

	s.state.Store(int32(Stopped))
	if err != nil {
		log.Errorw("server stopped with errors", "port", s.port, "error", err)
		return err
	}
	log.Infow("server stopped", "port", s.port)
	return nil
}
