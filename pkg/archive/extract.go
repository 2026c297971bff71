// Package archive reads and writes chain snapshots: gzip-compressed tar streams of a
// chain data directory.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"
	"github.com/schollz/progressbar/v3"
)

var log = logging.Logger("archive")

type options struct {
	progress io.Writer
}

// Option configures Extract and Pack.
type Option func(*options)

// WithProgress renders a progress bar to w while the archive is processed.
func WithProgress(w io.Writer) Option {
	return func(o *options) {
		o.progress = w
	}
}

// Extract decompresses the archive at archivePath into destDir, creating destDir if
// needed, and stamps destDir once the last entry is written. Any failure, including
// cancellation of ctx, is reported as an *ExtractionError. Files already written are
// left in place when extraction fails part way through, but destDir is not stamped.
func Extract(ctx context.Context, archivePath, destDir string, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	fail := func(err error) error {
		return &ExtractionError{Archive: archivePath, Dest: destDir, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fail(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fail(err)
	}
	if info.IsDir() {
		return fail(fmt.Errorf("archive is a directory"))
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fail(fmt.Errorf("creating destination: %w", err))
	}
	if err := removeStamp(destDir); err != nil {
		return fail(fmt.Errorf("removing previous stamp: %w", err))
	}

	var r io.Reader = &ctxReader{ctx: ctx, r: f}
	if o.progress != nil {
		bar := progressbar.NewOptions64(
			info.Size(),
			progressbar.OptionSetWriter(o.progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetDescription("Decompressing chain"),
			progressbar.OptionOnCompletion(func() {
				_, _ = fmt.Fprint(o.progress, "\n")
			}),
		)
		defer func() { _ = bar.Finish() }()
		r = io.TeeReader(r, bar)
	}

	count, written, err := untar(r, destDir)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return fail(err)
	}

	st, err := stampOf(archivePath, info)
	if err != nil {
		return fail(err)
	}
	if err := writeStamp(destDir, st); err != nil {
		return fail(fmt.Errorf("writing stamp: %w", err))
	}

	log.Infow("archive extracted",
		"archive", archivePath,
		"dest", destDir,
		"entries", count,
		"size", humanize.Bytes(uint64(written)),
	)
	return nil
}

func untar(r io.Reader, destDir string) (int, int64, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return 0, 0, fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gr.Close()

	var (
		count   int
		written int64
	)
	tr := tar.NewReader(gr)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, written, fmt.Errorf("reading tar header: %w", err)
		}

		target, err := entryPath(destDir, header.Name)
		if err != nil {
			return count, written, err
		}
		if target == destDir || target == filepath.Join(destDir, StampFile) {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, header.FileInfo().Mode().Perm()|0700); err != nil {
				return count, written, fmt.Errorf("creating directory %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			n, err := writeFile(target, tr, header.FileInfo().Mode().Perm()|0600)
			if err != nil {
				return count, written, fmt.Errorf("writing %s: %w", header.Name, err)
			}
			written += n
		case tar.TypeSymlink:
			if err := writeSymlink(destDir, target, header.Linkname); err != nil {
				return count, written, fmt.Errorf("linking %s: %w", header.Name, err)
			}
		default:
			log.Debugw("skipping unsupported tar entry", "name", header.Name, "type", header.Typeflag)
			continue
		}
		count++
	}

	return count, written, nil
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// entryPath resolves name below destDir, rejecting names that would escape it.
func entryPath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if !within(destDir, target) {
		return "", fmt.Errorf("illegal path in archive: %s", name)
	}
	return target, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func writeFile(target string, r io.Reader, mode os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return n, err
	}
	return n, f.Close()
}

func writeSymlink(destDir, target, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("absolute link target %s", linkname)
	}
	if !within(destDir, filepath.Join(filepath.Dir(target), linkname)) {
		return fmt.Errorf("link target %s escapes destination", linkname)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	_ = os.Remove(target)
	return os.Symlink(linkname, target)
}
