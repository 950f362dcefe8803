package rest

import (
	"context"
	"fmt"
	"net/http"

	"market-pulse/src/sessions"
	"market-pulse/src/utils"
)

// -----------------------------------------------------------------------------

// handleStream serves GET /api/stream?symbols=A,B,C as a server-sent-events
// stream. Requested symbols are subscribed on demand, then a distribution
// session runs against the connection until the client disconnects or the
// server shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	symbols := utils.SplitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		s.writeError(w, http.StatusBadRequest, "query parameter 'symbols' is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	s.feed.EnsureSubscribed(symbols)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	session := sessions.NewSession(s.store, s.serializer, s.logger, symbols)
	emitter := &sseEmitter{w: w, flusher: flusher}

	// Emit errors mean the client went away; the session already logged it.
	_ = session.Run(ctx, emitter)
}

// -----------------------------------------------------------------------------

// sseEmitter writes session events as SSE frames. It is only ever called from
// the session's goroutine, so no locking is needed.
type sseEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (e *sseEmitter) Emit(event string, payload []byte) error {
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
