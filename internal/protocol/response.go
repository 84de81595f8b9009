package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	notFoundMarker    = "not found"
	quarantinedStatus = "File quarantined"
)

// MsgFileNotFound is reported by both commands when file_path does not exist.
const MsgFileNotFound = "File not found"

// Response is one of Offsets, NotFound, Quarantined or Error.
type Response interface {
	isResponse()
}

// Offsets lists every match position in ascending order. It is never empty:
// a search without matches yields NotFound.
type Offsets []int

// NotFound reports a search without matches.
type NotFound struct{}

// Quarantined reports the resolved path of a quarantined file.
type Quarantined struct {
	Path string
}

// Error carries a human readable failure description.
type Error struct {
	Message string
}

func (Offsets) isResponse()     {}
func (NotFound) isResponse()    {}
func (Quarantined) isResponse() {}
func (Error) isResponse()       {}

// Errorf formats an Error response.
func Errorf(format string, args ...any) Error {
	return Error{Message: fmt.Sprintf(format, args...)}
}

// FromError converts err into an Error response.
func FromError(err error) Error {
	return Error{Message: err.Error()}
}

type offsetsMsg struct {
	Offsets []int `json:"offsets"`
}

type notFoundMsg struct {
	Offsets string `json:"offsets"`
}

type quarantinedMsg struct {
	Status         string `json:"status"`
	QuarantinePath string `json:"quarantine_path"`
}

type errorMsg struct {
	Error string `json:"error"`
}

// EncodeResponse serializes resp in the wire format.
func EncodeResponse(resp Response) ([]byte, error) {
	switch r := resp.(type) {
	case Offsets:
		return json.Marshal(offsetsMsg{Offsets: r})
	case NotFound:
		return json.Marshal(notFoundMsg{Offsets: notFoundMarker})
	case Quarantined:
		return json.Marshal(quarantinedMsg{Status: quarantinedStatus, QuarantinePath: r.Path})
	case Error:
		return json.Marshal(errorMsg{Error: r.Message})
	}
	return nil, fmt.Errorf("unsupported response type %T", resp)
}

// DecodeResponse parses a response produced by EncodeResponse.
func DecodeResponse(data []byte) (Response, error) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	if raw, ok := msg["error"]; ok {
		var m string
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return Error{Message: m}, nil
	}

	if raw, ok := msg["offsets"]; ok {
		var marker string
		if err := json.Unmarshal(raw, &marker); err == nil {
			if marker != notFoundMarker {
				return nil, fmt.Errorf("unexpected offsets marker %q", marker)
			}
			return NotFound{}, nil
		}

		var offsets []int
		if err := json.Unmarshal(raw, &offsets); err != nil {
			return nil, err
		}
		return Offsets(offsets), nil
	}

	if raw, ok := msg["quarantine_path"]; ok {
		var path string
		if err := json.Unmarshal(raw, &path); err != nil {
			return nil, err
		}
		return Quarantined{Path: path}, nil
	}
	return nil, errors.New("unrecognized response")
}
