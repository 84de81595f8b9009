// Package client sends single-shot requests to a sigcrawl server.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ostafen/sigcrawl/internal/protocol"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	DefaultAddr = "127.0.0.1:8888"
	MaxDSCP     = 63
)

var ErrInvalidDSCP = errors.New("invalid DSCP value")

type Client struct {
	addr    string
	dscp    int
	timeout time.Duration
}

type Option func(*Client)

// WithDSCP marks outgoing packets with the given DSCP value (0-MaxDSCP).
// Values out of range make every send fail with ErrInvalidDSCP.
func WithDSCP(dscp int) Option {
	return func(c *Client) {
		c.dscp = dscp
	}
}

// WithTimeout bounds dial, write and read. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func New(addr string, opts ...Option) *Client {
	c := &Client{addr: addr}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send encodes cmd, sends it and decodes the response.
func (c *Client) Send(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	req, err := protocol.EncodeRequest(cmd)
	if err != nil {
		return nil, err
	}

	data, err := c.SendRaw(ctx, req)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeResponse(data)
}

// SendRaw writes request in a single call and returns the bytes of a single
// read of at most protocol.MaxMessageSize. Longer responses are truncated.
func (c *Client) SendRaw(ctx context.Context, request []byte) ([]byte, error) {
	if c.dscp < 0 || c.dscp > MaxDSCP {
		return nil, fmt.Errorf("%w %d: must be in [0, %d]", ErrInvalidDSCP, c.dscp, MaxDSCP)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	dial := new(net.Dialer)
	conn, err := dial.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	// Unblock pending I/O when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if c.dscp > 0 {
		if err := setDSCP(conn, c.dscp); err != nil {
			return nil, fmt.Errorf("failed to set DSCP: %w", err)
		}
	}

	if _, err := conn.Write(request); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	buf := make([]byte, protocol.MaxMessageSize)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var ne net.Error
		if _, ok := ctx.Deadline(); ok && errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("failed to read response: %w: %w", context.DeadlineExceeded, err)
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return buf[:n], nil
}

func setDSCP(conn net.Conn, dscp int) error {
	tos := dscp << 2

	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if ok && addr.IP.To4() == nil {
		return ipv6.NewConn(conn).SetTrafficClass(tos)
	}
	return ipv4.NewConn(conn).SetTOS(tos)
}
