package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// writeTimeout bounds each write to a stream.
const writeTimeout = 30 * time.Second

// eventWriter writes SSE frames to one connection and counts what it sent.
type eventWriter struct {
	w       io.Writer
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger

	events int
	bytes  int
}

// event sends v as JSON in a named SSE event. A non-empty id becomes the
// event's Last-Event-ID.
//
//	event: transit
//	id: 3
//	data: {...}
func (e *eventWriter) event(name, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal %s: %w", name, err)
	}

	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(name)
	b.WriteByte('\n')
	if id != "" {
		b.WriteString("id: ")
		b.WriteString(id)
		b.WriteByte('\n')
	}
	b.WriteString("data: ")
	b.Write(data)
	b.WriteString("\n\n")

	if err := e.write(b.String()); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	e.events++
	return nil
}

// comment sends an SSE comment line, used as a keepalive.
func (e *eventWriter) comment() error {
	if err := e.write(":\n\n"); err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	return nil
}

// retry tells the client how long to wait before reconnecting.
func (e *eventWriter) retry(d time.Duration) error {
	return e.write(fmt.Sprintf("retry: %d\n\n", d.Milliseconds()))
}

func (e *eventWriter) write(frame string) error {
	// Deadline is extended per write; the server's WriteTimeout would cut long runs.
	if err := e.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		e.logger.Debug("could not set write deadline", "error", err)
	}
	n, err := io.WriteString(e.w, frame)
	e.bytes += n
	if err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
