package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/ostafen/sigcrawl/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	cmd, err := protocol.DecodeRequest([]byte(`{"CheckLocalFile": {"file_path": "/tmp/a.bin", "signature": "dead beef"}}`))
	require.NoError(t, err)
	require.Equal(t, protocol.CheckLocalFile{FilePath: "/tmp/a.bin", Signature: "dead beef"}, cmd)
	require.Equal(t, protocol.CmdCheckLocalFile, cmd.Name())

	cmd, err = protocol.DecodeRequest([]byte(`{"QuarantineLocalFile": {"file_path": "/tmp/a.bin"}}`))
	require.NoError(t, err)
	require.Equal(t, protocol.QuarantineLocalFile{FilePath: "/tmp/a.bin"}, cmd)
}

func TestDecodeRequestMissingSignature(t *testing.T) {
	cmd, err := protocol.DecodeRequest([]byte(`{"CheckLocalFile": {"file_path": "/tmp/a.bin"}}`))
	require.NoError(t, err)
	require.Equal(t, protocol.CheckLocalFile{FilePath: "/tmp/a.bin"}, cmd)
}

func TestDecodeRequestErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   string
	}{
		{"unknown command", `{"DeleteFile": {"file_path": "/tmp/x"}}`, "Unknown command: DeleteFile"},
		{"empty object", `{}`, "Empty request"},
		{"multiple commands", `{"CheckLocalFile": {}, "QuarantineLocalFile": {}}`, "Request must contain exactly one command"},
		{"missing file path", `{"QuarantineLocalFile": {}}`, "Missing file_path parameter"},
		{"empty file path", `{"CheckLocalFile": {"file_path": "", "signature": "00"}}`, "Missing file_path parameter"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := protocol.DecodeRequest([]byte(tc.input))
			require.EqualError(t, err, tc.err)
		})
	}
}

func TestDecodeRequestUnknownCommandType(t *testing.T) {
	_, err := protocol.DecodeRequest([]byte(`{"Nope": null}`))

	var unknown *protocol.UnknownCommandError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "Nope", unknown.Name)
}

func TestDecodeRequestMalformed(t *testing.T) {
	for _, input := range []string{``, `not json`, `[1,2]`, `{"CheckLocalFile": {"file_path": "/tmp/a`} {
		_, err := protocol.DecodeRequest([]byte(input))
		require.Error(t, err, input)
		require.Contains(t, err.Error(), "Invalid request", input)
	}

	_, err := protocol.DecodeRequest([]byte(`{"CheckLocalFile": "oops"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid parameters for CheckLocalFile")

	_, err = protocol.DecodeRequest([]byte{'{', 0xff, '}'})
	require.ErrorIs(t, err, protocol.ErrInvalidUTF8)
}

func TestEncodeRequestRoundTrip(t *testing.T) {
	in := protocol.CheckLocalFile{FilePath: "/var/tmp/sample", Signature: "4d5a"}

	data, err := protocol.EncodeRequest(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"CheckLocalFile": {"file_path": "/var/tmp/sample", "signature": "4d5a"}}`, string(data))

	out, err := protocol.DecodeRequest(data)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestEncodeRawRequest(t *testing.T) {
	data, err := protocol.EncodeRawRequest("Whatever", json.RawMessage(`{"a": 1}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"Whatever": {"a": 1}}`, string(data))
}

func TestEncodeResponse(t *testing.T) {
	tests := []struct {
		name string
		resp protocol.Response
		want string
	}{
		{"offsets", protocol.Offsets{0, 1, 2}, `{"offsets": [0, 1, 2]}`},
		{"not found", protocol.NotFound{}, `{"offsets": "not found"}`},
		{"quarantined", protocol.Quarantined{Path: "./quarantine/a.bin"}, `{"status": "File quarantined", "quarantine_path": "./quarantine/a.bin"}`},
		{"error", protocol.Error{Message: "File not found"}, `{"error": "File not found"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := protocol.EncodeResponse(tc.resp)
			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(data))

			decoded, err := protocol.DecodeResponse(data)
			require.NoError(t, err)
			require.Equal(t, tc.resp, decoded)
		})
	}
}

func TestEncodeResponseUnsupported(t *testing.T) {
	_, err := protocol.EncodeResponse(nil)
	require.Error(t, err)
}

func TestDecodeResponseErrors(t *testing.T) {
	for _, input := range []string{`garbage`, `{}`, `{"offsets": "maybe"}`, `{"offsets": {"a": 1}}`} {
		_, err := protocol.DecodeResponse([]byte(input))
		require.Error(t, err, input)
	}
}

func TestFromError(t *testing.T) {
	require.Equal(t, protocol.Error{Message: "Unknown command: X"}, protocol.FromError(&protocol.UnknownCommandError{Name: "X"}))
	require.Equal(t, protocol.Error{Message: "code 7"}, protocol.Errorf("code %d", 7))
}
