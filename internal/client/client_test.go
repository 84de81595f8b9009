package client_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ostafen/sigcrawl/internal/client"
	"github.com/ostafen/sigcrawl/internal/protocol"
	"github.com/stretchr/testify/require"
)

// fakeServer accepts one connection, records the request and replies with resp.
func fakeServer(t *testing.T, resp string) (string, <-chan string) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	requests := make(chan string, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, protocol.MaxMessageSize)
		n, _ := conn.Read(buf)
		requests <- string(buf[:n])

		if resp != "" {
			conn.Write([]byte(resp))
		}
	}()
	return l.Addr().String(), requests
}

func TestSend(t *testing.T) {
	addr, requests := fakeServer(t, `{"offsets": [4, 9]}`)

	c := client.New(addr, client.WithTimeout(5*time.Second))
	resp, err := c.Send(context.Background(), protocol.CheckLocalFile{FilePath: "/tmp/x", Signature: "00ff"})
	require.NoError(t, err)
	require.Equal(t, protocol.Offsets{4, 9}, resp)

	require.JSONEq(t, `{"CheckLocalFile": {"file_path": "/tmp/x", "signature": "00ff"}}`, <-requests)
}

func TestSendRaw(t *testing.T) {
	addr, requests := fakeServer(t, `{"error": "Unknown command: Foo"}`)

	data, err := client.New(addr).SendRaw(context.Background(), []byte(`{"Foo": {}}`))
	require.NoError(t, err)
	require.Equal(t, `{"error": "Unknown command: Foo"}`, string(data))
	require.Equal(t, `{"Foo": {}}`, <-requests)
}

func TestSendRawWithDSCP(t *testing.T) {
	addr, _ := fakeServer(t, `{"offsets": "not found"}`)

	data, err := client.New(addr, client.WithDSCP(46)).SendRaw(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, `{"offsets": "not found"}`, string(data))
}

func TestSendRawRejectsInvalidDSCP(t *testing.T) {
	addr, _ := fakeServer(t, `{"offsets": "not found"}`)

	for _, dscp := range []int{-1, 64} {
		_, err := client.New(addr, client.WithDSCP(dscp)).SendRaw(context.Background(), []byte(`{}`))
		require.ErrorIs(t, err, client.ErrInvalidDSCP)
	}
}

func TestSendRawNoResponse(t *testing.T) {
	addr, _ := fakeServer(t, "")

	_, err := client.New(addr).SendRaw(context.Background(), []byte(`{}`))
	require.Error(t, err)
	require.ErrorIs(t, err, io.EOF)
}

func TestSendRawTimeout(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	// Accepted by the kernel, never answered.
	_, err = client.New(l.Addr().String(), client.WithTimeout(100*time.Millisecond)).
		SendRaw(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendRawConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	_, err = client.New(addr).SendRaw(context.Background(), []byte(`{}`))
	require.Error(t, err)
}
