package inventory_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/ostafen/sigcrawl/internal/inventory"
	"github.com/ostafen/sigcrawl/pkg/dfxml"
	"github.com/stretchr/testify/require"
)

func setupDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestWrite(t *testing.T) {
	dir := setupDir(t, map[string]string{
		"evil.exe": "MZ payload",
		"empty":    "",
	})

	var buf bytes.Buffer
	summary, err := inventory.Write(&buf, dir)
	require.NoError(t, err)
	require.Equal(t, inventory.Summary{Files: 2, TotalSize: 10}, summary)

	doc, err := dfxml.Read(&buf)
	require.NoError(t, err)
	require.Equal(t, dir, doc.Source.Directory)
	require.Equal(t, 2, doc.Source.FileCount)
	require.Len(t, doc.FileObjects, 2)

	require.Equal(t, "empty", doc.FileObjects[0].Filename)
	digest, ok := doc.FileObjects[0].Digest(inventory.DigestType)
	require.True(t, ok)
	require.Equal(t, sha(""), digest)

	require.Equal(t, "evil.exe", doc.FileObjects[1].Filename)
	require.Equal(t, uint64(10), doc.FileObjects[1].FileSize)
	digest, _ = doc.FileObjects[1].Digest(inventory.DigestType)
	require.Equal(t, sha("MZ payload"), digest)
}

func TestWriteMissingDir(t *testing.T) {
	var buf bytes.Buffer
	_, err := inventory.Write(&buf, filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestVerify(t *testing.T) {
	dir := setupDir(t, map[string]string{
		"a.bin": "aaaa",
		"b.bin": "bbbb",
		"c.bin": "cccc",
	})

	var report bytes.Buffer
	_, err := inventory.Write(&report, dir)
	require.NoError(t, err)

	mismatches, err := inventory.Verify(dir, bytes.NewReader(report.Bytes()))
	require.NoError(t, err)
	require.Empty(t, mismatches)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte("AAAA"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte("bb"), 0644))
	require.NoError(t, os.Remove(filepath.Join(dir, "c.bin")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.bin"), []byte("new"), 0644))

	mismatches, err = inventory.Verify(dir, bytes.NewReader(report.Bytes()))
	require.NoError(t, err)
	require.Equal(t, []inventory.Mismatch{
		{Filename: "a.bin", Problem: inventory.DigestChanged},
		{Filename: "b.bin", Problem: inventory.SizeChanged},
		{Filename: "c.bin", Problem: inventory.Missing},
		{Filename: "d.bin", Problem: inventory.Unlisted},
	}, mismatches)
	require.Equal(t, "a.bin: digest changed", mismatches[0].String())
}
