package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// StampFile is written to the root of a destination once every entry of an archive has
// been extracted. It is skipped when packing and when extracting.
const StampFile = ".devchain-extracted"

type stamp struct {
	Archive string `toml:"archive"`
	Size    int64  `toml:"size"`
	ModTime int64  `toml:"mod_time"`
}

func stampOf(archivePath string, info fs.FileInfo) (stamp, error) {
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return stamp{}, err
	}
	return stamp{Archive: abs, Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
}

func writeStamp(destDir string, s stamp) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return err
	}
	tmp := filepath.Join(destDir, StampFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(destDir, StampFile))
}

func removeStamp(destDir string) error {
	err := os.Remove(filepath.Join(destDir, StampFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Extracted reports whether destDir holds a complete extraction of the archive at
// archivePath as it is now. A missing or unreadable archive is an *ExtractionError.
func Extracted(archivePath, destDir string) (bool, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return false, &ExtractionError{Archive: archivePath, Dest: destDir, Err: err}
	}
	want, err := stampOf(archivePath, info)
	if err != nil {
		return false, &ExtractionError{Archive: archivePath, Dest: destDir, Err: err}
	}

	data, err := os.ReadFile(filepath.Join(destDir, StampFile))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading extraction stamp: %w", err)
	}

	var got stamp
	if err := toml.Unmarshal(data, &got); err != nil {
		log.Warnw("ignoring unreadable extraction stamp", "dest", destDir, "error", err)
		return false, nil
	}
	return got == want, nil
}
