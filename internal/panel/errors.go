package panel

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a non-2xx panel response.
type APIError struct {
	Method string
	Path   string
	Status int
	Code   string
	Detail string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("panel %s %s: status %d", e.Method, e.Path, e.Status)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// StatusCode lets the error classifier map the failure by HTTP status.
func (e *APIError) StatusCode() int {
	return e.Status
}

type errorBody struct {
	Errors []struct {
		Code   string `json:"code"`
		Status string `json:"status"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func newAPIError(method, path string, resp *http.Response) *APIError {
	apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var body errorBody
	if json.Unmarshal(raw, &body) == nil && len(body.Errors) > 0 {
		apiErr.Code = body.Errors[0].Code
		details := make([]string, 0, len(body.Errors))
		for _, e := range body.Errors {
			if e.Detail != "" {
				details = append(details, e.Detail)
			}
		}
		apiErr.Detail = strings.Join(details, "; ")
		return apiErr
	}

	apiErr.Detail = strings.TrimSpace(string(raw))
	return apiErr
}
