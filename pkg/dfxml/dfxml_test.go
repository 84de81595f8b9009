package dfxml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer

	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(NewHeader("sigcrawl", "1.0.0", Source{
		Directory: "/srv/quarantine",
		FileCount: 2,
		TotalSize: 30,
	})))

	objs := []FileObject{
		{Filename: "a.exe", FileSize: 10, Mode: "-rw-r--r--", Hashes: []HashDigest{{Type: "sha256", Value: "aa"}}},
		{Filename: "b.pdf", FileSize: 20, Hashes: []HashDigest{{Type: "sha256", Value: "bb"}}},
	}
	for _, o := range objs {
		require.NoError(t, w.WriteFileObject(o))
	}
	require.NoError(t, w.Close())

	out := buf.String()
	require.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	require.Contains(t, out, `<dfxml xmloutputversion="1.0">`)
	require.Contains(t, out, `<dc:type>Quarantine Inventory</dc:type>`)
	require.Contains(t, out, `<hashdigest type="sha256">aa</hashdigest>`)
	require.True(t, strings.HasSuffix(strings.TrimSpace(out), "</dfxml>"))

	doc, err := Read(&buf)
	require.NoError(t, err)
	require.Equal(t, Source{Directory: "/srv/quarantine", FileCount: 2, TotalSize: 30}, doc.Source)
	require.Len(t, doc.FileObjects, 2)

	require.Equal(t, "a.exe", doc.FileObjects[0].Filename)
	require.Equal(t, uint64(10), doc.FileObjects[0].FileSize)
	require.Equal(t, "-rw-r--r--", doc.FileObjects[0].Mode)

	digest, ok := doc.FileObjects[1].Digest("sha256")
	require.True(t, ok)
	require.Equal(t, "bb", digest)

	_, ok = doc.FileObjects[1].Digest("md5")
	require.False(t, ok)
}

func TestReadMalformed(t *testing.T) {
	_, err := Read(strings.NewReader(`<dfxml><fileobject><filesize>abc</filesize></fileobject></dfxml>`))
	require.Error(t, err)
}

func TestGetExecEnv(t *testing.T) {
	env := GetExecEnv()
	require.NotEmpty(t, env.OS)
	require.NotEmpty(t, env.Arch)
	require.NotEmpty(t, env.Start)
}
