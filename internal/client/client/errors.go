package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/coderoom/internal/common"
)

var (
	ErrUnavailable = errors.New("server unavailable")
	ErrNotLoggedIn = errors.New("not logged in")
)

// APIError is a non-2xx response. Message is taken from whichever of the
// server's error body shapes is present.
type APIError struct {
	Status  int
	Message string
	Fields  []common.FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		msgs := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			msgs = append(msgs, f.Field+": "+f.Msg)
		}
		return fmt.Sprintf("%d: %s", e.Status, strings.Join(msgs, "; "))
	}
	if e.Message == "" {
		return fmt.Sprintf("%d: %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusBadRequest:
		return common.ErrorValidation
	default:
		return nil
	}
}

// parseAPIError reads {"error"}, {"message"}, {"errors": "..."} and
// {"errors": [{path,msg}]} bodies. Anything else keeps the raw text.
func parseAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		e.Message = strings.TrimSpace(string(body))
		return e
	}

	for _, key := range []string{"error", "message", "errors"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			e.Message = s
			return e
		}
		var fields []common.FieldError
		if err := json.Unmarshal(v, &fields); err == nil {
			e.Fields = fields
			return e
		}
	}
	return e
}
