package archive_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storacha/devchain/pkg/archive"
)

type entry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func writeArchive(t *testing.T, entries []entry) string {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: e.typeflag,
			Linkname: e.linkname,
			Mode:     0644,
			Size:     int64(len(e.body)),
		}
		if e.typeflag == tar.TypeDir {
			hdr.Mode = 0755
			hdr.Size = 0
		}
		if e.typeflag == tar.TypeSymlink {
			hdr.Size = 0
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Size > 0 {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	path := filepath.Join(t.TempDir(), "chain.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestExtract(t *testing.T) {
	t.Run("extracts files directories and links", func(t *testing.T) {
		src := writeArchive(t, []entry{
			{name: "./", typeflag: tar.TypeDir},
			{name: "devchain/", typeflag: tar.TypeDir},
			{name: "devchain/chaindata/CURRENT", body: "MANIFEST-000001\n", typeflag: tar.TypeReg},
			{name: "genesis.json", body: `{"config":{}}`, typeflag: tar.TypeReg},
			{name: "devchain/genesis.json", typeflag: tar.TypeSymlink, linkname: "../genesis.json"},
		})
		dest := filepath.Join(t.TempDir(), "data")

		require.NoError(t, archive.Extract(t.Context(), src, dest))

		got, err := os.ReadFile(filepath.Join(dest, "devchain", "chaindata", "CURRENT"))
		require.NoError(t, err)
		require.Equal(t, "MANIFEST-000001\n", string(got))

		got, err = os.ReadFile(filepath.Join(dest, "devchain", "genesis.json"))
		require.NoError(t, err)
		require.Equal(t, `{"config":{}}`, string(got))
	})

	t.Run("renders progress", func(t *testing.T) {
		src := writeArchive(t, []entry{
			{name: "a.txt", body: "hello", typeflag: tar.TypeReg},
		})
		var progress bytes.Buffer

		require.NoError(t, archive.Extract(t.Context(), src, t.TempDir(), archive.WithProgress(&progress)))
		require.NotZero(t, progress.Len())
	})

	t.Run("missing archive", func(t *testing.T) {
		dest := t.TempDir()
		err := archive.Extract(t.Context(), filepath.Join(dest, "nope.tar.gz"), dest)

		var extractErr *archive.ExtractionError
		require.ErrorAs(t, err, &extractErr)
		require.ErrorIs(t, err, os.ErrNotExist)
		require.Equal(t, dest, extractErr.Dest)
	})

	t.Run("corrupt archive", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "bad.tar.gz")
		require.NoError(t, os.WriteFile(src, []byte("not a gzip stream"), 0644))

		var extractErr *archive.ExtractionError
		require.ErrorAs(t, archive.Extract(t.Context(), src, t.TempDir()), &extractErr)
		require.Equal(t, src, extractErr.Archive)
	})

	t.Run("rejects paths outside destination", func(t *testing.T) {
		root := t.TempDir()
		src := writeArchive(t, []entry{
			{name: "../escaped.txt", body: "x", typeflag: tar.TypeReg},
		})
		dest := filepath.Join(root, "data")

		var extractErr *archive.ExtractionError
		require.ErrorAs(t, archive.Extract(t.Context(), src, dest), &extractErr)
		require.NoFileExists(t, filepath.Join(root, "escaped.txt"))
	})

	t.Run("rejects links outside destination", func(t *testing.T) {
		src := writeArchive(t, []entry{
			{name: "passwd", typeflag: tar.TypeSymlink, linkname: "../../etc/passwd"},
		})

		var extractErr *archive.ExtractionError
		require.ErrorAs(t, archive.Extract(t.Context(), src, t.TempDir()), &extractErr)
	})

	t.Run("destination is a file", func(t *testing.T) {
		src := writeArchive(t, []entry{
			{name: "a.txt", body: "hello", typeflag: tar.TypeReg},
		})
		dest := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(dest, nil, 0644))

		var extractErr *archive.ExtractionError
		require.ErrorAs(t, archive.Extract(t.Context(), src, dest), &extractErr)
	})
}

func TestPackRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "devchain", "chaindata"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "devchain", "chaindata", "000001.log"), []byte("blocks"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "keystore"), []byte("keys"), 0600))
	require.NoError(t, os.Symlink("keystore", filepath.Join(src, "keys")))

	out := filepath.Join(t.TempDir(), "snapshot.tar.gz")
	require.NoError(t, archive.Pack(src, out))

	dest := t.TempDir()
	require.NoError(t, archive.Extract(t.Context(), out, dest))

	got, err := os.ReadFile(filepath.Join(dest, "devchain", "chaindata", "000001.log"))
	require.NoError(t, err)
	require.Equal(t, "blocks", string(got))

	got, err = os.ReadFile(filepath.Join(dest, "keys"))
	require.NoError(t, err)
	require.Equal(t, "keys", string(got))
}

func TestPackMissingSource(t *testing.T) {
	out := filepath.Join(t.TempDir(), "snapshot.tar.gz")
	require.Error(t, archive.Pack(filepath.Join(t.TempDir(), "missing"), out))
	require.NoFileExists(t, out)
}

func TestExtractStamp(t *testing.T) {
	t.Run("stamps a complete extraction", func(t *testing.T) {
		src := writeArchive(t, []entry{
			{name: "a.txt", body: "hello", typeflag: tar.TypeReg},
		})
		dest := t.TempDir()

		ok, err := archive.Extracted(src, dest)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, archive.Extract(t.Context(), src, dest))
		require.FileExists(t, filepath.Join(dest, archive.StampFile))

		ok, err = archive.Extracted(src, dest)
		require.NoError(t, err)
		require.True(t, ok)

		// a rewritten archive no longer matches
		later := time.Now().Add(time.Hour)
		require.NoError(t, os.Chtimes(src, later, later))
		ok, err = archive.Extracted(src, dest)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("truncated archive leaves no stamp", func(t *testing.T) {
		body := bytes.Repeat([]byte("0123456789abcdef"), 64*1024)
		full := writeArchive(t, []entry{
			{name: "a.txt", body: "hello", typeflag: tar.TypeReg},
			{name: "z.bin", body: string(body), typeflag: tar.TypeReg},
		})
		data, err := os.ReadFile(full)
		require.NoError(t, err)
		truncated := filepath.Join(t.TempDir(), "truncated.tar.gz")
		require.NoError(t, os.WriteFile(truncated, data[:len(data)/2], 0644))

		dest := t.TempDir()
		// a stamp left by an earlier extraction must not survive a failed one
		require.NoError(t, archive.Extract(t.Context(), full, dest))

		var extractErr *archive.ExtractionError
		require.ErrorAs(t, archive.Extract(t.Context(), truncated, dest), &extractErr)
		require.NoFileExists(t, filepath.Join(dest, archive.StampFile))

		ok, err := archive.Extracted(truncated, dest)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("missing archive", func(t *testing.T) {
		_, err := archive.Extracted(filepath.Join(t.TempDir(), "nope.tar.gz"), t.TempDir())
		var extractErr *archive.ExtractionError
		require.ErrorAs(t, err, &extractErr)
	})

	t.Run("stamp is not packed", func(t *testing.T) {
		src := writeArchive(t, []entry{
			{name: "a.txt", body: "hello", typeflag: tar.TypeReg},
		})
		dir := t.TempDir()
		require.NoError(t, archive.Extract(t.Context(), src, dir))

		out := filepath.Join(t.TempDir(), "repacked.tar.gz")
		require.NoError(t, archive.Pack(dir, out))

		f, err := os.Open(out)
		require.NoError(t, err)
		defer f.Close()
		gr, err := gzip.NewReader(f)
		require.NoError(t, err)
		tr := tar.NewReader(gr)
		var names []string
		for {
			hdr, err := tr.Next()
			if err != nil {
				break
			}
			names = append(names, hdr.Name)
		}
		require.Equal(t, []string{"a.txt"}, names)
	})
}

func TestExtractCancelled(t *testing.T) {
	src := writeArchive(t, []entry{
		{name: "a.txt", body: "hello", typeflag: tar.TypeReg},
	})
	dest := filepath.Join(t.TempDir(), "data")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := archive.Extract(ctx, src, dest)
	var extractErr *archive.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	require.ErrorIs(t, err, context.Canceled)
	require.NoDirExists(t, dest)
}
