package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type loggerFunc func(string, ...any)

func (f loggerFunc) Info(msg string, v ...any) { f(msg, v...) }

func TestLoggerMiddleware(t *testing.T) {
	var called int
	var msg string
	var args []any

	logger := loggerFunc(func(m string, v ...any) {
		called++
		msg = m
		args = v
	})

	tests := []struct {
		name           string
		handler        http.HandlerFunc
		expectedStatus int
		expectedSize   int
	}{
		{
			name: "explicit status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
				_, _ = w.Write([]byte("hi"))
			},
			expectedStatus: http.StatusTeapot,
			expectedSize:   2,
		},
		{
			name: "implicit status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("hello"))
			},
			expectedStatus: http.StatusOK,
			expectedSize:   5,
		},
		{
			name: "status written twice",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectedStatus: http.StatusCreated,
			expectedSize:   0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called = 0

			srv := httptest.NewServer(LoggerMiddleware(logger)(tc.handler))
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/test?x=1")
			require.NoError(t, err, "should make request to test server")
			_, err = io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() // nolint:errcheck

			require.Equal(t, tc.expectedStatus, resp.StatusCode)

			require.Equal(t, 1, called, "logger should be called once")
			require.Equal(t, "got HTTP request", msg)
			require.Len(t, args, 10, "logger should log 10 fields")
			require.Equal(t, []any{"method", "GET", "uri", "/test?x=1"}, args[:4])
			require.Equal(t, "duration", args[4])
			require.NotEmpty(t, args[5], "duration should not be empty")
			require.Equal(t, []any{"status", tc.expectedStatus, "size", tc.expectedSize}, args[6:])
		})
	}
}
