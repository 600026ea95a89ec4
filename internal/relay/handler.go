package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// SSEHandler returns an http.HandlerFunc that streams run messages as SSE.
// Each message is sent with its kind as the SSE event name.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		f := parseFilter(r.URL.Query())

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if !f.accept(msg) {
					continue
				}
				data, err := json.Marshal(msg)
				if err != nil {
					slog.Warn("sse: marshal message", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, data)
				flusher.Flush()
			}
		}
	}
}
