package api

import (
	"encoding/json"
	"fmt"
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Body       string
	// Detail is the human readable message when the body carries one.
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api: status %d", e.StatusCode)
}

func newStatusError(code int, body []byte) *StatusError {
	var payload struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	detail := ""
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Detail != "":
			detail = payload.Detail
		case payload.Error != "":
			detail = payload.Error
		case payload.Message != "":
			detail = payload.Message
		}
	}
	return &StatusError{StatusCode: code, Body: string(body), Detail: detail}
}
