package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/outpost-run/tiermesh/internal/dialect"
)

// streamSSE pumps translated SSE frames from upstream to the client,
// racing a heartbeat ticker against upstream reads so the client never sees
// more than heartbeatInterval of silence (spec.md §4.4, §5: heartbeats and
// upstream bytes race via select, first writer wins each turn). It returns
// the concatenated payload frames written to the client (heartbeats
// excluded, since their timing is not reproducible) so the caller can
// complete the dedup entry with the same bytes a concurrent duplicate
// would otherwise have to wait on.
func streamSSE(ctx context.Context, w http.ResponseWriter, upstream io.Reader, translator *dialect.FrameTranslator, heartbeatInterval time.Duration) ([]byte, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("proxy: response writer does not support flushing")
	}
	var payload []byte

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(": heartbeat\n\n")); err != nil {
		return nil, err
	}
	flusher.Flush()

	chunks := make(chan []byte)
	readDone := make(chan error, 1)

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := upstream.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					readDone <- nil
				} else {
					readDone <- err
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return payload, ctx.Err()

		case <-ticker.C:
			if _, err := w.Write([]byte(": heartbeat\n\n")); err != nil {
				return payload, err
			}
			flusher.Flush()

		case chunk := <-chunks:
			ticker.Reset(heartbeatInterval)
			frames, done, err := translator.Feed(chunk)
			if err != nil {
				return payload, err
			}
			for _, f := range frames {
				if _, err := w.Write(f); err != nil {
					return payload, err
				}
				payload = append(payload, f...)
			}
			if len(frames) > 0 {
				flusher.Flush()
			}
			if done {
				return payload, nil
			}

		case err := <-readDone:
			if err != nil {
				return payload, err
			}
			for _, f := range translator.Finalize() {
				if _, err := w.Write(f); err != nil {
					return payload, err
				}
				payload = append(payload, f...)
			}
			flusher.Flush()
			return payload, nil
		}
	}
}
