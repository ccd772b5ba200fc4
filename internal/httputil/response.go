// Package httputil writes the admin server's JSON replies.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/banshee-data/cubenav/internal/monitoring"
)

// ErrorJSON is the body of every failed request.
type ErrorJSON struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// Reply encodes v as the body of a status response.
func Reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Opsf("http: failed to encode %T reply: %v", v, err)
	}
}

func ReplyOK(w http.ResponseWriter, v any) {
	Reply(w, http.StatusOK, v)
}

// Fail replies with an ErrorJSON carrying the formatted message.
func Fail(w http.ResponseWriter, status int, format string, args ...any) {
	Reply(w, status, ErrorJSON{Status: status, Error: fmt.Sprintf(format, args...)})
}

// GetOnly answers anything but GET with 405 and reports whether the handler
// should go on.
func GetOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	Fail(w, http.StatusMethodNotAllowed, "%s not allowed, use GET", r.Method)
	return false
}

// JournalFailure logs err against what the handler was doing and replies 500
// without the database detail.
func JournalFailure(w http.ResponseWriter, doing string, err error) {
	monitoring.Opsf("http: failed to %s: %v", doing, err)
	Fail(w, http.StatusInternalServerError, "failed to %s", doing)
}
