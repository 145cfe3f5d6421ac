package middleware

import (
	"bytes"
	"net/http"
)

// Remembers what was written to the client
// Body is copied only when capture is enabled
type responseRecorder struct {
	http.ResponseWriter

	status      int
	size        int
	wroteHeader bool

	capture bool
	body    bytes.Buffer
}

func newRecorder(w http.ResponseWriter, capture bool) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		status:         http.StatusOK,
		capture:        capture,
	}
}

func (w *responseRecorder) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	size, err := w.ResponseWriter.Write(p)
	w.size += size
	if w.capture {
		w.body.Write(p[:size])
	}
	return size, err
}

func (w *responseRecorder) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
