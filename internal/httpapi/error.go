package httpapi

import (
	"encoding/json"
	"net/http"
)

// Response is a generic error response of the admin and status APIs.
type Response struct {
	Errors []Error `json:"errors"`
}

// Error represents generic HTTP error returned by the admin and status APIs.
type Error struct {
	Message string `json:"message"`
}

// WriteError writes a JSON encoded Response with a single error.
func WriteError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{Errors: []Error{{Message: err.Error()}}})
}
