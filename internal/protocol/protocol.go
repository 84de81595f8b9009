// Package protocol implements the single-shot JSON wire format spoken by the
// sigcrawl server.
//
// A request is a JSON object with exactly one top-level key, the command
// name, whose value holds the command parameters:
//
//	{"CheckLocalFile": {"file_path": "/tmp/a.bin", "signature": "deadbeef"}}
//	{"QuarantineLocalFile": {"file_path": "/tmp/a.bin"}}
//
// There is no framing. Each side performs a single read bounded by
// MaxMessageSize, so a message larger than that is truncated by the receiver.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// MaxMessageSize is the upper bound of a single receive call.
const MaxMessageSize = 1024

// Command names as they appear on the wire.
const (
	CmdCheckLocalFile      = "CheckLocalFile"
	CmdQuarantineLocalFile = "QuarantineLocalFile"
)

var (
	ErrEmptyRequest     = errors.New("Empty request")
	ErrMultipleCommands = errors.New("Request must contain exactly one command")
	ErrInvalidUTF8      = errors.New("Request is not valid UTF-8")
	ErrMissingFilePath  = errors.New("Missing file_path parameter")
)

// UnknownCommandError is returned when the request names a command
// outside the closed set understood by the server.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return "Unknown command: " + e.Name
}

// Command is one of CheckLocalFile or QuarantineLocalFile.
type Command interface {
	Name() string
	isCommand()
}

// CheckLocalFile asks for every offset of Signature (hex encoded) in FilePath.
type CheckLocalFile struct {
	FilePath  string `json:"file_path"`
	Signature string `json:"signature"`
}

func (CheckLocalFile) Name() string { return CmdCheckLocalFile }
func (CheckLocalFile) isCommand()   {}

// QuarantineLocalFile asks to move FilePath into the quarantine directory.
type QuarantineLocalFile struct {
	FilePath string `json:"file_path"`
}

func (QuarantineLocalFile) Name() string { return CmdQuarantineLocalFile }
func (QuarantineLocalFile) isCommand()   {}

// DecodeRequest parses a raw request into a Command.
func DecodeRequest(data []byte) (Command, error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidUTF8
	}

	var req map[string]json.RawMessage
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("Invalid request: %w", err)
	}

	switch len(req) {
	case 0:
		return nil, ErrEmptyRequest
	case 1:
	default:
		return nil, ErrMultipleCommands
	}

	var (
		name   string
		params json.RawMessage
	)
	for name, params = range req {
	}

	switch name {
	case CmdCheckLocalFile:
		var cmd CheckLocalFile
		if err := decodeParams(name, params, &cmd); err != nil {
			return nil, err
		}
		if cmd.FilePath == "" {
			return nil, ErrMissingFilePath
		}
		return cmd, nil
	case CmdQuarantineLocalFile:
		var cmd QuarantineLocalFile
		if err := decodeParams(name, params, &cmd); err != nil {
			return nil, err
		}
		if cmd.FilePath == "" {
			return nil, ErrMissingFilePath
		}
		return cmd, nil
	}
	return nil, &UnknownCommandError{Name: name}
}

func decodeParams(name string, params json.RawMessage, dst any) error {
	if err := json.Unmarshal(params, dst); err != nil {
		return fmt.Errorf("Invalid parameters for %s: %w", name, err)
	}
	return nil
}

// EncodeRequest serializes cmd in the wire format.
func EncodeRequest(cmd Command) ([]byte, error) {
	return json.Marshal(map[string]Command{cmd.Name(): cmd})
}

// EncodeRawRequest builds a request from a command name and its
// already-encoded parameters, without checking that the command exists.
func EncodeRawRequest(name string, params json.RawMessage) ([]byte, error) {
	return json.Marshal(map[string]json.RawMessage{name: params})
}
