package devchain_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/storacha/devchain/internal/mocks"
	"github.com/storacha/devchain/pkg/accounts"
	"github.com/storacha/devchain/pkg/archive"
	"github.com/storacha/devchain/pkg/chain"
	"github.com/storacha/devchain/pkg/chain/geth"
	"github.com/storacha/devchain/pkg/devchain"
	"github.com/storacha/devchain/pkg/presets"
	"github.com/storacha/devchain/pkg/smoketest"
	"github.com/storacha/devchain/pkg/testutil"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// snapshot packs a small data directory and returns the archive path.
func snapshot(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "devchain", "chaindata"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "devchain", "chaindata", "CURRENT"), []byte("MANIFEST-000001\n"), 0644))
	out := filepath.Join(t.TempDir(), "chain.tar.gz")
	require.NoError(t, archive.Pack(src, out))
	return out
}

// isolateTemp points ephemeral data directories at a fresh directory and returns it.
func isolateTemp(t *testing.T) string {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	return tmp
}

func ephemeralDirs(t *testing.T, tmp string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(tmp, "devchain-*"))
	require.NoError(t, err)
	return matches
}

func TestStartStop(t *testing.T) {
	tmp := isolateTemp(t)
	ctrl := gomock.NewController(t)
	sim := mocks.NewMockSimulator(ctrl)

	var dataDir string
	sim.EXPECT().Configure(gomock.Any()).DoAndReturn(func(cfg chain.Config) error {
		dataDir = cfg.DataDir
		return nil
	})
	sim.EXPECT().Listen(gomock.Any()).DoAndReturn(func(context.Context) (http.Handler, error) {
		// the snapshot is in place before the simulator boots
		require.FileExists(t, filepath.Join(dataDir, "devchain", "chaindata", "CURRENT"))
		return okHandler, nil
	})
	sim.EXPECT().Close().Return(nil)

	o, err := devchain.New(devchain.Config{Archive: snapshot(t)}, sim)
	require.NoError(t, err)
	require.Nil(t, o.SmokeTestDone())

	srv, err := o.Start(t.Context())
	require.NoError(t, err)
	require.Same(t, srv, o.Server())
	require.Len(t, ephemeralDirs(t, tmp), 1)

	require.NoError(t, o.Stop(context.Background()))
	require.NoError(t, o.Stop(context.Background()))
	require.Equal(t, chain.Stopped, srv.State())
	require.Empty(t, ephemeralDirs(t, tmp))

	_, err = o.Start(t.Context())
	require.Error(t, err)
}

func TestStartMissingArchive(t *testing.T) {
	tmp := isolateTemp(t)
	ctrl := gomock.NewController(t)
	// no expectations: the simulator is never configured
	sim := mocks.NewMockSimulator(ctrl)

	o, err := devchain.New(devchain.Config{Archive: filepath.Join(t.TempDir(), "missing.tar.gz")}, sim)
	require.NoError(t, err)

	srv, err := o.Start(t.Context())
	var extractErr *archive.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	require.Nil(t, srv)
	require.Nil(t, o.Server())
	require.Empty(t, ephemeralDirs(t, tmp))
	require.NoError(t, o.Stop(context.Background()))
}

func TestStartPortInUse(t *testing.T) {
	tmp := isolateTemp(t)
	ctrl := gomock.NewController(t)
	sim := mocks.NewMockSimulator(ctrl)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	o, err := devchain.New(devchain.Config{
		Archive: snapshot(t),
		Server:  chain.Options{Port: l.Addr().(*net.TCPAddr).Port},
	}, sim)
	require.NoError(t, err)

	_, err = o.Start(t.Context())
	var bindErr *chain.PortBindError
	require.ErrorAs(t, err, &bindErr)
	require.Empty(t, ephemeralDirs(t, tmp))
}

func TestStartPersistentDir(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "devchain", "chaindata", "CURRENT")
	state := filepath.Join(dir, "state.json")

	run := func(t *testing.T, archivePath string) {
		t.Helper()
		ctrl := gomock.NewController(t)
		sim := mocks.NewMockSimulator(ctrl)
		sim.EXPECT().Configure(gomock.Any()).Return(nil)
		sim.EXPECT().Listen(gomock.Any()).Return(okHandler, nil)
		sim.EXPECT().Close().Return(nil)

		o, err := devchain.New(devchain.Config{Archive: archivePath, DataDir: dir}, sim)
		require.NoError(t, err)
		_, err = o.Start(t.Context())
		require.NoError(t, err)
		require.NoError(t, o.Stop(context.Background()))
	}

	first := snapshot(t)
	run(t, first)
	require.FileExists(t, current)
	require.FileExists(t, filepath.Join(dir, archive.StampFile))

	// chain state survives a restart from the same snapshot
	require.NoError(t, os.WriteFile(state, []byte("{}"), 0644))
	run(t, first)
	require.FileExists(t, state)

	// a different snapshot replaces it
	run(t, snapshot(t))
	require.NoFileExists(t, state)
	require.FileExists(t, current)
}

func TestStartAfterFailedExtraction(t *testing.T) {
	const size = 1 << 20
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0644))
	blob := make([]byte, size)
	_, err := rand.Read(blob)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(src, "z.bin"), blob, 0644))

	good := filepath.Join(t.TempDir(), "chain.tar.gz")
	require.NoError(t, archive.Pack(src, good))
	data, err := os.ReadFile(good)
	require.NoError(t, err)
	truncated := filepath.Join(t.TempDir(), "truncated.tar.gz")
	require.NoError(t, os.WriteFile(truncated, data[:len(data)/2], 0644))

	dir := t.TempDir()
	zbin := filepath.Join(dir, "z.bin")

	// no expectations: the simulator never sees the partial tree
	o, err := devchain.New(devchain.Config{Archive: truncated, DataDir: dir}, mocks.NewMockSimulator(gomock.NewController(t)))
	require.NoError(t, err)
	_, err = o.Start(t.Context())
	var extractErr *archive.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	require.FileExists(t, filepath.Join(dir, "a.txt"))

	ctrl := gomock.NewController(t)
	sim := mocks.NewMockSimulator(ctrl)
	sim.EXPECT().Configure(gomock.Any()).Return(nil)
	sim.EXPECT().Listen(gomock.Any()).DoAndReturn(func(context.Context) (http.Handler, error) {
		info, err := os.Stat(zbin)
		require.NoError(t, err)
		require.EqualValues(t, size, info.Size())
		return okHandler, nil
	})
	sim.EXPECT().Close().Return(nil)

	o, err = devchain.New(devchain.Config{Archive: good, DataDir: dir}, sim)
	require.NoError(t, err)
	_, err = o.Start(t.Context())
	require.NoError(t, err)
	require.NoError(t, o.Stop(context.Background()))

	got, err := os.ReadFile(zbin)
	require.NoError(t, err)
	require.Equal(t, blob, got)
}

func TestStartCancelled(t *testing.T) {
	tmp := isolateTemp(t)
	// no expectations: extraction stops before the simulator is configured
	sim := mocks.NewMockSimulator(gomock.NewController(t))

	o, err := devchain.New(devchain.Config{Archive: snapshot(t)}, sim)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = o.Start(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, ephemeralDirs(t, tmp))
}

func TestStopWaitsForTeardown(t *testing.T) {
	isolateTemp(t)
	ctrl := gomock.NewController(t)
	sim := mocks.NewMockSimulator(ctrl)
	closing := make(chan struct{})
	sim.EXPECT().Configure(gomock.Any()).Return(nil)
	sim.EXPECT().Listen(gomock.Any()).Return(okHandler, nil)
	sim.EXPECT().Close().DoAndReturn(func() error {
		<-closing
		return nil
	})

	o, err := devchain.New(devchain.Config{Archive: snapshot(t)}, sim)
	require.NoError(t, err)
	srv, err := o.Start(t.Context())
	require.NoError(t, err)

	// another caller, such as the management API, starts the teardown
	go func() { _ = srv.Stop(context.Background()) }()
	require.Eventually(t, func() bool { return srv.State() == chain.Stopping }, 5*time.Second, 10*time.Millisecond)

	short, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, o.Stop(short), context.DeadlineExceeded)

	stopped := make(chan error, 1)
	go func() { stopped <- o.Stop(context.Background()) }()
	require.Never(t, func() bool { return len(stopped) > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	close(closing)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not return after teardown finished")
	}
	require.Equal(t, chain.Stopped, srv.State())
}

func testAccounts(t *testing.T) accounts.Set {
	accts, err := accounts.Derive(presets.Mnemonic, 2)
	require.NoError(t, err)
	return accts
}

func newSmokeOrchestrator(t *testing.T, sim chain.Simulator, reg smoketest.Registry) *devchain.Orchestrator {
	t.Helper()
	o, err := devchain.New(devchain.Config{
		Archive:   snapshot(t),
		DataDir:   t.TempDir(),
		SmokeTest: true,
		Smoke: smoketest.Config{
			Contracts: []string{"Election"},
			Out:       io.Discard,
		},
	}, sim, devchain.WithSmokeTestOptions(smoketest.WithDialer(func(context.Context, string) (smoketest.Registry, error) {
		return reg, nil
	})))
	require.NoError(t, err)
	return o
}

func waitFor(t *testing.T, done <-chan error) error {
	t.Helper()
	require.NotNil(t, done)
	select {
	case err := <-done:
		return err
	case <-time.After(30 * time.Second):
		t.Fatal("smoke test did not finish")
		return nil
	}
}

// balanceBook answers BalanceOf with each address's balance before the transfer on
// the first call and after it on later calls.
type balanceBook struct {
	mu     sync.Mutex
	before map[common.Address]*big.Int
	after  map[common.Address]*big.Int
	seen   map[common.Address]bool
}

func (b *balanceBook) BalanceOf(_ context.Context, addr common.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.seen[addr] {
		b.seen[addr] = true
		return b.before[addr], nil
	}
	return b.after[addr], nil
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func TestSmokeTest(t *testing.T) {
	accts := testAccounts(t)
	sender, receiver := accts[0].Address, accts[1].Address

	t.Run("stops the chain when it passes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sim := mocks.NewMockSimulator(ctrl)
		sim.EXPECT().Configure(gomock.Any()).Return(nil)
		sim.EXPECT().Listen(gomock.Any()).Return(okHandler, nil)
		sim.EXPECT().Close().Return(nil)

		book := &balanceBook{
			before: map[common.Address]*big.Int{sender: ether(100), receiver: ether(100)},
			after:  map[common.Address]*big.Int{sender: ether(89), receiver: ether(110)},
			seen:   map[common.Address]bool{},
		}
		reg := mocks.NewMockRegistry(ctrl)
		reg.EXPECT().AddressFor(gomock.Any(), "Election").Return(common.HexToAddress("0xe1"), nil)
		reg.EXPECT().BalanceOf(gomock.Any(), gomock.Any()).DoAndReturn(book.BalanceOf).Times(4)
		reg.EXPECT().Transfer(gomock.Any(), gomock.Any(), receiver, presets.SmokeTransferAmount()).
			Return(&types.Receipt{Status: types.ReceiptStatusSuccessful}, nil)
		reg.EXPECT().Close()

		o := newSmokeOrchestrator(t, sim, reg)
		srv, err := o.Start(t.Context())
		require.NoError(t, err)

		require.NoError(t, waitFor(t, o.SmokeTestDone()))
		<-srv.Done()
		require.Equal(t, chain.Stopped, srv.State())
		require.NoError(t, o.Stop(context.Background()))
	})

	t.Run("leaves the chain running when it fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sim := mocks.NewMockSimulator(ctrl)
		sim.EXPECT().Configure(gomock.Any()).Return(nil)
		sim.EXPECT().Listen(gomock.Any()).Return(okHandler, nil)
		sim.EXPECT().Close().Return(nil)

		reg := mocks.NewMockRegistry(ctrl)
		reg.EXPECT().AddressFor(gomock.Any(), "Election").Return(common.Address{}, nil)
		reg.EXPECT().Close()

		o := newSmokeOrchestrator(t, sim, reg)
		srv, err := o.Start(t.Context())
		require.NoError(t, err)

		var smokeErr *smoketest.SmokeTestError
		require.ErrorAs(t, waitFor(t, o.SmokeTestDone()), &smokeErr)
		require.Equal(t, chain.Running, srv.State())
		require.NoError(t, o.Stop(context.Background()))
		require.Equal(t, chain.Stopped, srv.State())
	})
}

func TestEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chain test in short mode")
	}
	tmp := isolateTemp(t)

	cfg := chain.DefaultConfig()
	cfg.Alloc = testutil.RegistryAlloc(presets.RegistryAddress)

	var out bytes.Buffer
	o, err := devchain.New(devchain.Config{
		Archive:   snapshotWithoutChain(t),
		Backend:   "geth",
		Server:    chain.Options{Chain: cfg},
		SmokeTest: true,
		Smoke:     smoketest.Config{Out: &out},
	}, geth.New())
	require.NoError(t, err)

	srv, err := o.Start(t.Context())
	require.NoError(t, err)
	require.NoError(t, waitFor(t, o.SmokeTestDone()))
	<-srv.Done()

	for _, name := range presets.CoreContracts() {
		require.Contains(t, out.String(), name+": "+testutil.StubAddress.Hex())
	}
	require.Contains(t, out.String(), "Balances before transfer")
	require.Contains(t, out.String(), "Balances after transfer")
	require.Empty(t, ephemeralDirs(t, tmp))
}

// snapshotWithoutChain packs a directory with no chain data, so the chain boots from
// a fresh genesis.
func snapshotWithoutChain(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("empty snapshot"), 0644))
	out := filepath.Join(t.TempDir(), "empty.tar.gz")
	require.NoError(t, archive.Pack(src, out))
	return out
}
