package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

var errStreamingUnsupported = errors.New("response writer cannot stream")

// chatStream writes one completion as server-sent events. Every chunk shares
// the completion id, creation time and model of the first.
type chatStream struct {
	w       io.Writer
	flusher http.Flusher
	chunk   chatCompletionChunk
}

func startChatStream(w http.ResponseWriter, completionID string, created int64, modelID string) (*chatStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	return &chatStream{
		w:       w,
		flusher: flusher,
		chunk: chatCompletionChunk{
			ID:      completionID,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   modelID,
		},
	}, nil
}

func (s *chatStream) send(delta chatMessageDelta, finishReason *string) error {
	s.chunk.Choices = []chatCompletionChunkChoice{{Index: 0, Delta: delta, FinishReason: finishReason}}
	payload, err := json.Marshal(s.chunk)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// streamAnswer sends the answer in windows of chunkChars runes, then the stop
// chunk and the [DONE] sentinel. The role rides on the first window only.
func (s *chatStream) streamAnswer(answer string, chunkChars int) error {
	if chunkChars <= 0 {
		chunkChars = defaultStreamChunkChars
	}
	for i, part := range splitByRunes(answer, chunkChars) {
		delta := chatMessageDelta{Content: part}
		if i == 0 {
			delta.Role = "assistant"
		}
		if err := s.send(delta, nil); err != nil {
			return err
		}
	}

	stop := "stop"
	if err := s.send(chatMessageDelta{}, &stop); err != nil {
		return err
	}
	if _, err := io.WriteString(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// splitByRunes cuts text into windows of at most size runes without
// splitting a multibyte character. Blank text yields one empty window.
func splitByRunes(text string, size int) []string {
	if strings.TrimSpace(text) == "" {
		return []string{""}
	}
	if size <= 0 {
		return []string{text}
	}
	parts := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	for text != "" {
		cut := 0
		for n := 0; n < size && cut < len(text); n++ {
			_, width := utf8.DecodeRuneInString(text[cut:])
			cut += width
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return parts
}
