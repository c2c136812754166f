package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"chatconnect/internal/models"
)

var errStreamingUnsupported = errors.New("streaming not supported")

// streamEncoder frames StreamEvents onto an SSE response body as
// `data: <json>\n\n` records. Every event is flushed immediately so
// fragments reach the client as they are produced.
type streamEncoder struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newStreamEncoder(w http.ResponseWriter) (*streamEncoder, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	return &streamEncoder{w: w, flusher: flusher}, nil
}

func (e *streamEncoder) send(event models.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

// Chunk emits one fragment event.
func (e *streamEncoder) Chunk(fragment string) error {
	return e.send(models.StreamEvent{Chunk: fragment})
}

// Error emits the terminal error event. No done event follows it.
func (e *streamEncoder) Error(detail string) error {
	return e.send(models.StreamEvent{Error: detail})
}

// Done emits the terminal success event carrying the concatenated response.
func (e *streamEncoder) Done(fullResponse string) error {
	return e.send(models.StreamEvent{Done: true, FullResponse: fullResponse})
}
