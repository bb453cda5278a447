package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ainova/newsrag/internal/domain"
	"github.com/ainova/newsrag/internal/generate"
	"github.com/ainova/newsrag/internal/logger"
)

// doneSentinel closes every SSE stream, terminal event or not, so clients
// can tell a finished stream from a dropped connection.
const doneSentinel = "[DONE]"

// streamFrame is the wire form of one SSE data frame.
type streamFrame struct {
	Type     string            `json:"type"`
	StreamID string            `json:"stream_id"`
	Step     string            `json:"step,omitempty"`
	Percent  int               `json:"percent,omitempty"`
	Delta    string            `json:"delta,omitempty"`
	Result   *generateResponse `json:"result,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// streamGeneration runs the pipeline in streaming mode and forwards events as
// server-sent events. Events are written in pipeline order; after the
// terminal event only the [DONE] sentinel follows.
func (s *Server) streamGeneration(w http.ResponseWriter, r *http.Request, req generate.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	streamID := uuid.NewString()
	log := logger.FromContext(r.Context()).With(zap.String("stream_id", streamID))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event := range s.orchestrator.RunStream(r.Context(), req) {
		frame := frameFromEvent(streamID, event)
		data, err := json.Marshal(frame)
		if err != nil {
			log.Error("marshal stream frame", zap.Error(err))
			break
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			// Client went away; the context cancellation stops the pipeline.
			log.Debug("stream write failed", zap.Error(err))
			return
		}
		flusher.Flush()
	}

	fmt.Fprintf(w, "data: %s\n\n", doneSentinel)
	flusher.Flush()
}

func frameFromEvent(streamID string, e domain.Event) streamFrame {
	frame := streamFrame{
		Type:     string(e.Kind),
		StreamID: streamID,
		Step:     e.Step,
		Percent:  e.Percent,
		Delta:    e.Delta,
		Message:  e.Message,
	}
	if e.Result != nil {
		wire := generationToWire(*e.Result)
		frame.Result = &wire
	}
	return frame
}
