package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrRemoteCallFailed matches every error returned by Client calls.
var ErrRemoteCallFailed = errors.New("remote call failed")

// RemoteCallError describes a failed call to the platform API.
type RemoteCallError struct {
	Op         string // operation name, e.g. "create lesson"
	StatusCode int    // HTTP status, 0 for transport errors
	Message    string // server-supplied message, if any
	Err        error  // underlying transport or decode error, if any
}

func (e *RemoteCallError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	sb.WriteString(": remote call failed")
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		sb.WriteString(": " + e.Message)
	} else if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// Is reports ErrRemoteCallFailed as a match for any RemoteCallError.
func (e *RemoteCallError) Is(target error) bool {
	return target == ErrRemoteCallFailed
}

// ServerMessage returns the server-supplied message carried by err, if any.
func ServerMessage(err error) string {
	var rce *RemoteCallError
	if errors.As(err, &rce) {
		return rce.Message
	}
	return ""
}

// messageFromBody extracts {"message": "..."} or {"error": "..."} from an error response.
func messageFromBody(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	if s, ok := payload.Error.(string); ok {
		return s
	}
	return ""
}
