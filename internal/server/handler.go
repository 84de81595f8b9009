package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/ostafen/sigcrawl/internal/metrics"
	"github.com/ostafen/sigcrawl/internal/protocol"
)

// SignatureChecker searches a file for a hex encoded byte signature.
type SignatureChecker interface {
	CheckFileSignature(path, signatureHex string) protocol.Response
}

// Quarantiner moves a file into quarantine.
type Quarantiner interface {
	QuarantineFile(path string) protocol.Response
}

// ConnHandler serves a single connection. It must not close conn.
type ConnHandler interface {
	ServeConn(conn net.Conn) error
}

// Metric labels for requests that never reached a command.
const (
	commandInvalid = "invalid"
	commandUnknown = "unknown"
)

// Handler implements the single-shot request protocol: one read of at most
// protocol.MaxMessageSize bytes, one command, one response write.
type Handler struct {
	checker    SignatureChecker
	quarantine Quarantiner
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewHandler(checker SignatureChecker, quarantine Quarantiner, logger *slog.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Handler{
		checker:    checker,
		quarantine: quarantine,
		logger:     logger,
		metrics:    m,
	}
}

// ServeConn reads one request from conn and writes back its response.
func (h *Handler) ServeConn(conn net.Conn) error {
	start := time.Now()
	log := h.logger.With("request_id", uuid.NewString(), "remote", remoteAddr(conn))

	buf := make([]byte, protocol.MaxMessageSize)

	// A single read: requests longer than MaxMessageSize are truncated.
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read request: %w", err)
	}

	command, resp := h.handle(buf[:n])

	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	result := resultLabel(resp)
	h.metrics.ObserveRequest(command, result, time.Since(start))

	if e, ok := resp.(protocol.Error); ok {
		log.Error("Error handling client", "command", command, "error", e.Message)
	} else {
		log.Info("Handled command", "command", command, "response", string(data))
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

// handle turns data into a response. A panic while serving the command is
// reported to the client as an Error response.
func (h *Handler) handle(data []byte) (command string, resp protocol.Response) {
	command = commandInvalid

	defer func() {
		if r := recover(); r != nil {
			h.metrics.ObservePanic()
			h.logger.Error("Panic handling command", "command", command, "panic", r, "stack", string(debug.Stack()))
			resp = protocol.Errorf("%v", r)
		}
	}()

	cmd, err := protocol.DecodeRequest(data)
	if err != nil {
		var unknown *protocol.UnknownCommandError
		if errors.As(err, &unknown) {
			command = commandUnknown
		}
		return command, protocol.FromError(err)
	}

	command = cmd.Name()
	return command, h.Dispatch(cmd)
}

// Dispatch routes cmd to the operation implementing it.
func (h *Handler) Dispatch(cmd protocol.Command) protocol.Response {
	switch c := cmd.(type) {
	case protocol.CheckLocalFile:
		return h.checker.CheckFileSignature(c.FilePath, c.Signature)
	case protocol.QuarantineLocalFile:
		return h.quarantine.QuarantineFile(c.FilePath)
	}
	return protocol.FromError(&protocol.UnknownCommandError{Name: cmd.Name()})
}

func resultLabel(resp protocol.Response) string {
	switch resp.(type) {
	case protocol.Offsets:
		return metrics.ResultOffsets
	case protocol.NotFound:
		return metrics.ResultNotFound
	case protocol.Quarantined:
		return metrics.ResultQuarantined
	}
	return metrics.ResultError
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
