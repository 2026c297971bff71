// Package devchain runs a development chain from a snapshot: it unpacks the snapshot
// into a data directory, serves the chain on it and optionally smoke tests it.
package devchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/storacha/devchain/pkg/accounts"
	"github.com/storacha/devchain/pkg/archive"
	"github.com/storacha/devchain/pkg/chain"
	"github.com/storacha/devchain/pkg/datadir"
	"github.com/storacha/devchain/pkg/presets"
	"github.com/storacha/devchain/pkg/smoketest"
	"github.com/storacha/devchain/pkg/telemetry"
)

var log = logging.Logger("devchain")

// Config describes one development chain run.
type Config struct {
	// Archive is the snapshot the data directory is populated from.
	Archive string
	// DataDir keeps chain state across runs. An ephemeral directory is used when empty.
	DataDir string
	// Backend names the simulator, for metrics.
	Backend string
	Server  chain.Options
	// SmokeTest runs the smoke test once the server is listening.
	SmokeTest bool
	// Smoke configures the smoke test. Accounts are derived from Server.Chain when unset.
	Smoke smoketest.Config
	// Progress receives an extraction progress bar when set.
	Progress io.Writer
}

// Orchestrator takes a chain from snapshot to running server and back down. It runs
// one chain once.
type Orchestrator struct {
	cfg       Config
	sim       chain.Simulator
	metrics   *telemetry.Metrics
	smokeOpts []smoketest.Option

	mu          sync.Mutex
	started     bool
	srv         *chain.Server
	smokeDone   chan error
	cancelSmoke context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records to m instead of the global meter.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithSmokeTestOptions passes opts on to the smoke test runner.
func WithSmokeTestOptions(opts ...smoketest.Option) Option {
	return func(o *Orchestrator) {
		o.smokeOpts = append(o.smokeOpts, opts...)
	}
}

// New returns an Orchestrator that will run sim on a data directory populated from
// cfg.Archive.
func New(cfg Config, sim chain.Simulator, opts ...Option) (*Orchestrator, error) {
	if cfg.Archive == "" {
		return nil, errors.New("archive is required")
	}
	if sim == nil {
		return nil, errors.New("simulator is required")
	}

	o := &Orchestrator{cfg: cfg, sim: sim}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		m, err := telemetry.NewMetrics(telemetry.Global())
		if err != nil {
			return nil, fmt.Errorf("creating metrics: %w", err)
		}
		o.metrics = m
	}
	if cfg.SmokeTest {
		o.smokeDone = make(chan error, 1)
	}
	return o, nil
}

// Start populates the data directory from the archive and starts the chain on it. Any
// failure before the chain is listening, including cancellation of ctx, removes an
// ephemeral data directory. Start may only be called once.
func (o *Orchestrator) Start(ctx context.Context) (*chain.Server, error) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil, errors.New("orchestrator already started")
	}
	o.started = true
	o.mu.Unlock()

	dir, err := datadir.Resolve(o.cfg.DataDir)
	if err != nil {
		return nil, err
	}

	srv, err := o.startHeld(ctx, dir)
	if err != nil {
		if rmErr := dir.Remove(); rmErr != nil {
			log.Warnw("failed to remove data directory", "path", dir.Path, "error", rmErr)
		}
		return nil, err
	}

	o.mu.Lock()
	o.srv = srv
	o.mu.Unlock()
	return srv, nil
}

// startHeld keeps dir from being removed by datadir.RemoveAll while it is written to.
func (o *Orchestrator) startHeld(ctx context.Context, dir *datadir.Dir) (*chain.Server, error) {
	release, err := dir.Hold()
	if err != nil {
		return nil, err
	}
	defer release()
	return o.start(ctx, dir)
}

func (o *Orchestrator) start(ctx context.Context, dir *datadir.Dir) (*chain.Server, error) {
	if err := o.populate(ctx, dir); err != nil {
		return nil, err
	}

	var runner *smoketest.Runner
	if o.cfg.SmokeTest {
		r, err := o.newRunner()
		if err != nil {
			return nil, err
		}
		runner = r
	}

	opts := o.cfg.Server
	opts.OnStart = func(port int, stop chain.StopFunc) {
		o.metrics.RecordServer(ctx, o.cfg.Backend, port, opts.Chain.NetworkID)
		if runner == nil {
			return
		}

		// the smoke test outlives ctx, which only covers startup
		smokeCtx, cancel := context.WithCancel(context.Background())
		o.mu.Lock()
		o.cancelSmoke = cancel
		o.mu.Unlock()

		go func() {
			defer cancel()
			err := runner.Run(smokeCtx, port, stop)
			switch {
			case err == nil:
				log.Info("smoke test passed")
			case smokeCtx.Err() != nil:
				log.Infow("smoke test cancelled", "error", err)
			default:
				log.Errorw("smoke test failed", "error", err)
			}
			o.metrics.RecordSmokeTest(context.Background(), err)
			o.smokeDone <- err
		}()
	}

	return chain.Start(ctx, o.sim, dir, opts)
}

// populate extracts the archive into dir. A persistent dir is reused only when it holds
// a complete extraction of the same archive. Anything else found there, such as the
// remains of an interrupted extraction, is cleared first.
func (o *Orchestrator) populate(ctx context.Context, dir *datadir.Dir) error {
	if !dir.Ephemeral {
		extracted, err := archive.Extracted(o.cfg.Archive, dir.Path)
		if err != nil {
			return err
		}
		if extracted {
			log.Infow("data directory already populated, skipping extraction", "path", dir.Path)
			o.metrics.RecordExtract(ctx, 0, true)
			return nil
		}

		populated, err := dir.Populated()
		if err != nil {
			return fmt.Errorf("inspecting data directory: %w", err)
		}
		if populated {
			log.Warnw("data directory holds an incomplete or different snapshot, extracting again",
				"path", dir.Path, "archive", o.cfg.Archive)
			if err := dir.Clear(); err != nil {
				return err
			}
		}
	}

	log.Infow("extracting", "archive", o.cfg.Archive, "dest", dir.Path)
	start := time.Now()

	var opts []archive.Option
	if o.cfg.Progress != nil {
		opts = append(opts, archive.WithProgress(o.cfg.Progress))
	}
	if err := archive.Extract(ctx, o.cfg.Archive, dir.Path, opts...); err != nil {
		return err
	}

	elapsed := time.Since(start)
	o.metrics.RecordExtract(ctx, elapsed, false)
	log.Infow("decompressed", "dest", dir.Path, "took", elapsed)
	return nil
}

func (o *Orchestrator) newRunner() (*smoketest.Runner, error) {
	cfg := o.cfg.Smoke
	if len(cfg.Accounts) == 0 {
		mnemonic := o.cfg.Server.Chain.Mnemonic
		if mnemonic == "" {
			mnemonic = presets.Mnemonic
		}
		accts, err := accounts.Derive(mnemonic, 2)
		if err != nil {
			return nil, fmt.Errorf("deriving smoke test accounts: %w", err)
		}
		cfg.Accounts = accts
	}
	if cfg.Host == "" {
		cfg.Host = o.cfg.Server.Host
	}
	return smoketest.New(cfg, o.smokeOpts...)
}

// SmokeTestDone delivers the smoke test result. It is nil when no smoke test was
// requested.
func (o *Orchestrator) SmokeTestDone() <-chan error {
	return o.smokeDone
}

// Server is the running chain, nil before a successful Start.
func (o *Orchestrator) Server() *chain.Server {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.srv
}

// Stop cancels a running smoke test and stops the chain. When another caller is
// already stopping the chain, Stop waits for that teardown to finish or for ctx. It is
// safe to call more than once and before Start.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	srv, cancel := o.srv, o.cancelSmoke
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if srv == nil {
		return nil
	}
	if err := srv.Stop(ctx); err != nil {
		return err
	}
	select {
	case <-srv.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for chain to stop: %w", ctx.Err())
	}
}

// Status describes the chain for the management API.
type Status struct {
	State     string `json:"state"`
	URL       string `json:"url,omitempty"`
	Port      int    `json:"port,omitempty"`
	DataDir   string `json:"data_dir,omitempty"`
	Ephemeral bool   `json:"ephemeral"`
	Backend   string `json:"backend"`
}

// Status reports the chain's current state. Before the server exists the state is
// "starting".
func (o *Orchestrator) Status() Status {
	srv := o.Server()
	if srv == nil {
		return Status{State: "starting", Backend: o.cfg.Backend}
	}
	st := Status{
		State:   srv.State().String(),
		URL:     srv.URL(),
		Port:    srv.Port(),
		Backend: o.cfg.Backend,
	}
	if dir := srv.Dir(); dir != nil {
		st.DataDir = dir.Path
		st.Ephemeral = dir.Ephemeral
	}
	return st
}
