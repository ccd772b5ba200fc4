package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReply(t *testing.T) {
	rec := httptest.NewRecorder()
	Reply(rec, http.StatusCreated, map[string]int{"cubes": 3})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 3, got["cubes"])
}

func TestFailures(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		msg    string
	}{
		{"not found", func(w http.ResponseWriter) { Fail(w, http.StatusNotFound, "run %s not found", "r1") },
			http.StatusNotFound, "run r1 not found"},
		{"journal", func(w http.ResponseWriter) { JournalFailure(w, "read approaches", errors.New("database is locked")) },
			http.StatusInternalServerError, "failed to read approaches"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.status, rec.Code)
			var got ErrorJSON
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, ErrorJSON{Status: tt.status, Error: tt.msg}, got)
		})
	}
}

func TestGetOnly(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.True(t, GetOnly(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil)))
	assert.Equal(t, http.StatusOK, rec.Code, "nothing written for GET")

	rec = httptest.NewRecorder()
	assert.False(t, GetOnly(rec, httptest.NewRequest(http.MethodDelete, "/api/runs", nil)))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
	var got ErrorJSON
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "DELETE not allowed, use GET", got.Error)
}
