// Package datadir resolves the directory a chain stores its state in. A directory is
// either persistent, chosen by the user and kept after shutdown, or ephemeral, created
// under the system temp directory and removed when the chain stops.
package datadir

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("datadir")

const tempPrefix = "devchain-"

// ErrRemoved is returned by Hold once the directory has been removed.
var ErrRemoved = errors.New("data directory removed")

// Dir is a resolved chain data directory.
type Dir struct {
	Path      string
	Ephemeral bool

	// busy is read-held while the directory is being written and write-held by Remove.
	busy      sync.RWMutex
	removed   bool
	once      sync.Once
	removeErr error
}

// Resolve returns the data directory at path, creating it if needed. An empty path
// yields a fresh ephemeral directory.
func Resolve(path string) (*Dir, error) {
	if path == "" {
		tmp, err := os.MkdirTemp("", tempPrefix)
		if err != nil {
			return nil, fmt.Errorf("creating temporary data directory: %w", err)
		}
		d := &Dir{Path: tmp, Ephemeral: true}
		track(d)
		log.Debugw("using ephemeral data directory", "path", tmp)
		return d, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving data directory %s: %w", path, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", abs, err)
	}
	log.Debugw("using persistent data directory", "path", abs)
	return &Dir{Path: abs}, nil
}

// Populated reports whether the directory holds any entries.
func (d *Dir) Populated() (bool, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	names, err := f.Readdirnames(1)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading data directory %s: %w", d.Path, err)
	}
	return len(names) > 0, nil
}

// Clear deletes every entry of the directory, keeping the directory itself.
func (d *Dir) Clear() error {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return fmt.Errorf("reading data directory %s: %w", d.Path, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(d.Path, e.Name())); err != nil {
			return fmt.Errorf("clearing data directory %s: %w", d.Path, err)
		}
	}
	log.Debugw("cleared data directory", "path", d.Path, "entries", len(entries))
	return nil
}

// Hold keeps Remove from deleting the directory until release is called, so a writer
// never recreates a directory that was removed underneath it. It returns ErrRemoved
// once the directory is gone.
func (d *Dir) Hold() (release func(), err error) {
	d.busy.RLock()
	if d.removed {
		d.busy.RUnlock()
		return nil, ErrRemoved
	}
	return d.busy.RUnlock, nil
}

// Remove deletes an ephemeral directory and its contents, waiting for any Hold to be
// released first. It is a no-op for persistent directories, and only the first call
// does any work.
func (d *Dir) Remove() error {
	if !d.Ephemeral {
		return nil
	}
	d.once.Do(func() {
		d.busy.Lock()
		defer d.busy.Unlock()
		d.removed = true
		untrack(d)
		if err := os.RemoveAll(d.Path); err != nil {
			d.removeErr = fmt.Errorf("removing data directory %s: %w", d.Path, err)
			return
		}
		log.Debugw("removed ephemeral data directory", "path", d.Path)
	})
	return d.removeErr
}

var (
	mu      sync.Mutex
	pending = map[*Dir]struct{}{}
)

func track(d *Dir) {
	mu.Lock()
	defer mu.Unlock()
	pending[d] = struct{}{}
}

func untrack(d *Dir) {
	mu.Lock()
	defer mu.Unlock()
	delete(pending, d)
}

// RemoveAll removes every ephemeral directory created by this process that has not
// been removed yet, waiting for directories still held by a writer. It is meant for
// exit paths that bypass the normal stop sequence.
func RemoveAll() {
	mu.Lock()
	dirs := make([]*Dir, 0, len(pending))
	for d := range pending {
		dirs = append(dirs, d)
	}
	mu.Unlock()

	for _, d := range dirs {
		if err := d.Remove(); err != nil {
			log.Warnw("failed to remove data directory", "path", d.Path, "error", err)
		}
	}
}
