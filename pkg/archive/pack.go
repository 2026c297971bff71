package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/multierr"
)

// Pack writes the contents of srcDir to archivePath in the format Extract reads.
// A partially written archive is removed on failure.
func Pack(srcDir, archivePath string, opts ...Option) (err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	srcDir, err = filepath.Abs(srcDir)
	if err != nil {
		return fmt.Errorf("resolving source directory: %w", err)
	}
	archiveAbs, err := filepath.Abs(archivePath)
	if err != nil {
		return fmt.Errorf("resolving archive path: %w", err)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()

	var w io.Writer = out
	if o.progress != nil {
		bar := progressbar.NewOptions64(
			-1,
			progressbar.OptionSetWriter(o.progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetDescription("Compressing chain"),
		)
		defer func() { _ = bar.Finish() }()
		w = io.MultiWriter(out, bar)
	}

	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	var count int
	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir || path == archiveAbs || path == filepath.Join(srcDir, StampFile) {
			return nil
		}
		if err := addEntry(tw, srcDir, path, d); err != nil {
			return fmt.Errorf("adding %s: %w", path, err)
		}
		count++
		return nil
	})

	err = multierr.Combine(walkErr, tw.Close(), gw.Close(), out.Close())
	if err != nil {
		return fmt.Errorf("packing %s: %w", srcDir, err)
	}

	if info, statErr := os.Stat(archivePath); statErr == nil {
		log.Infow("archive written",
			"source", srcDir,
			"archive", archivePath,
			"entries", count,
			"size", humanize.Bytes(uint64(info.Size())),
		)
	}
	return nil
}

func addEntry(tw *tar.Writer, root, path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(rel)
	if info.IsDir() {
		header.Name += "/"
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}
