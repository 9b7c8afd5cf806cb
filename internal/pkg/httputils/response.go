// Package httputils provides HTTP response helpers.
package httputils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docchat/pkg/utils/json"
)

// ErrResponse is the uniform JSON error body.
type ErrResponse struct {
	Error string `json:"error"`
}

// WriteError writes a JSON error response with the given status code.
func WriteError(c *gin.Context, status int, err error) {
	c.JSON(status, ErrResponse{Error: err.Error()})
}

// NDJSONWriter streams newline-delimited JSON events to the client,
// flushing after every event so consumers see them immediately.
type NDJSONWriter struct {
	c *gin.Context
}

// NewNDJSONWriter prepares the response for NDJSON streaming.
func NewNDJSONWriter(c *gin.Context) *NDJSONWriter {
	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	return &NDJSONWriter{c: c}
}

// Write marshals one event, appends a newline and flushes.
func (w *NDJSONWriter) Write(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := w.c.Writer.Write(append(data, '\n')); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}
