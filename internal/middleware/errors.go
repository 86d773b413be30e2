package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorResponse is the JSON body of every response the gatekeeper itself
// generates.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
}

// NewErrorResponse builds an envelope for status using the standard reason phrase.
func NewErrorResponse(status int, message, path string) ErrorResponse {
	return ErrorResponse{
		Error:      http.StatusText(status),
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Path:       path,
	}
}

// WriteError writes the error envelope with the given status. Headers already
// set on w are kept.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message string) {
	body := NewErrorResponse(status, message, r.URL.Path)

	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.Header().Set(HeaderXContentTypeOption, "nosniff")
	w.Header().Set(HeaderCacheControl, "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
