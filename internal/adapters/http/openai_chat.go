package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

func (rt *Router) listModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, modelListResponse{
		Object: "list",
		Data: []modelObject{
			{
				ID:      rt.openAICompatModelID,
				Object:  "model",
				Created: time.Now().Unix(),
				OwnedBy: "club-events-assistant",
			},
		},
	})
}

// chatCompletions answers the latest user message through the question
// pipeline. Earlier turns are not used as context.
func (rt *Router) chatCompletions(w http.ResponseWriter, r *http.Request) {
	if rt.answerer == nil {
		writeError(w, http.StatusServiceUnavailable, "question answering is not configured")
		return
	}

	var req chatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	question, ok := req.question()
	if !ok {
		writeError(w, http.StatusBadRequest, "at least one user message with text content is required")
		return
	}

	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = rt.openAICompatModelID
	}
	completionID := newCompletionID()
	created := time.Now().Unix()

	start := time.Now()
	answer := rt.answerer.Answer(r.Context(), question)
	slog.Info("chat_completion_answered",
		"request_id", requestIDFromContext(r.Context()),
		"model", modelID,
		"stream", req.Stream,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	if req.Stream {
		stream, err := startChatStream(w, completionID, created, modelID)
		if err == nil {
			err = stream.streamAnswer(answer, rt.openAICompatStreamChunkChars)
		}
		if err != nil {
			slog.Warn("chat_completion_stream_failed", "request_id", requestIDFromContext(r.Context()), "error", err.Error())
		}
		if !errors.Is(err, errStreamingUnsupported) {
			return
		}
	}
	writeJSON(w, http.StatusOK, buildTextChatCompletionResponse(completionID, created, modelID, question, answer))
}
