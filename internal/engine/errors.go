// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the engine.
type APIError struct {
	Method string
	Path   string
	Status int

	// Detail is the engine's explanation, taken from the "detail" field of
	// the error body. Empty when the body carried none.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s: engine returned HTTP %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: engine returned HTTP %d: %s", e.Method, e.Path, e.Status, e.Detail)
}

// NetworkError is a transport failure: the connection could not be made,
// the request timed out, or the response body was not the JSON expected.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// errorBody is the engine's error envelope. Detail is either a string or,
// for request validation failures, a list of {loc, msg} objects.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationDetail struct {
	Loc []interface{} `json:"loc"`
	Msg string        `json:"msg"`
}

// parseDetail extracts a readable message from an error body. Bodies that
// are not JSON, or carry no detail, yield "".
func parseDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s
	}

	var list []validationDetail
	if err := json.Unmarshal(eb.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, d := range list {
			if d.Msg == "" {
				continue
			}
			if field := locField(d.Loc); field != "" {
				msgs = append(msgs, field+": "+d.Msg)
			} else {
				msgs = append(msgs, d.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return strings.TrimSpace(string(eb.Detail))
}

// locField returns the last element of a validation location, e.g.
// ["body", "text"] -> "text".
func locField(loc []interface{}) string {
	if len(loc) == 0 {
		return ""
	}
	return fmt.Sprint(loc[len(loc)-1])
}
