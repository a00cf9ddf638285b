package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed call.
type Kind int

const (
	// KindTransport covers network errors, timeouts, cancellation and malformed responses.
	KindTransport Kind = iota + 1
	// KindAuth is a 401 from the server. The session has been torn down by the time the caller sees it.
	KindAuth
	// KindValidation is any other 4xx. Detail carries the server's message for display.
	KindValidation
	// KindServer is a 5xx.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport_failure"
	case KindAuth:
		return "auth_failure"
	case KindValidation:
		return "validation_failure"
	case KindServer:
		return "server_failure"
	}
	return "unknown"
}

// Sentinels for errors.Is.
var (
	ErrTransport   = errors.New("transport failure")
	ErrAuthFailure = errors.New("authorization failure")
	ErrValidation  = errors.New("validation failure")
	ErrServer      = errors.New("server failure")
)

// Error is returned by Client.Do for every unsuccessful call.
type Error struct {
	Kind      Kind
	Status    int // 0 for transport failures
	Operation string
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Operation)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrAuthFailure:
		return e.Kind == KindAuth
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// Detail extracts a user-facing message from err, or "" when err is not an *Error.
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return apiErr.Kind.String()
	}
	return ""
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}

// parseDetail reads the server's error message. The backend answers {"detail": "..."},
// or {"detail": [{"loc": [...], "msg": "..."}]} for request validation; some gateways use {"error": "..."}.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return strings.TrimSpace(string(body))
	}
	if len(envelope.Detail) > 0 {
		var msg string
		if err := json.Unmarshal(envelope.Detail, &msg); err == nil {
			return msg
		}
		var items []struct {
			Loc []any  `json:"loc"`
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
			parts := make([]string, 0, len(items))
			for _, it := range items {
				if len(it.Loc) > 0 {
					parts = append(parts, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
				} else {
					parts = append(parts, it.Msg)
				}
			}
			return strings.Join(parts, "; ")
		}
		return string(envelope.Detail)
	}
	if envelope.Error != "" {
		return envelope.Error
	}
	return strings.TrimSpace(string(body))
}
