package core

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// JSONResponse is the standard JSON response envelope.
type JSONResponse struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail contains error information for API clients.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON creates a 200 response wrapping data in the standard envelope.
func JSON(data any) Response {
	return jsonResponse{
		status: http.StatusOK,
		body:   JSONResponse{Data: data},
	}
}

// JSONWithStatus creates a response with an explicit status code.
func JSONWithStatus(status int, data any) Response {
	return jsonResponse{
		status: status,
		body:   JSONResponse{Data: data},
	}
}

// JSONError creates an error response. HTTPError values map to their status
// code; everything else becomes a 500 with the error message redacted behind
// a generic code so internals never leak to clients.
func JSONError(err error) Response {
	status := http.StatusInternalServerError
	detail := &ErrorDetail{
		Code:    ErrInternalServerError.Key,
		Message: http.StatusText(status),
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		detail.Code = httpErr.Key
		detail.Message = http.StatusText(httpErr.Code)
	}

	return jsonResponse{
		status: status,
		body:   JSONResponse{Error: detail},
	}
}

// JSONErrorMessage creates an error response with a human-readable message
// and optional structured details for client display.
func JSONErrorMessage(httpErr HTTPError, message string, details map[string]any) Response {
	return jsonResponse{
		status: httpErr.Code,
		body: JSONResponse{
			Error: &ErrorDetail{
				Code:    httpErr.Key,
				Message: message,
				Details: details,
			},
		},
	}
}

// Render writes a Response, falling back to a plain 500 when rendering fails.
func Render(w http.ResponseWriter, r *http.Request, resp Response) {
	if err := resp.Render(w, r); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
