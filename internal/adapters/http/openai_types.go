package httpadapter

import (
	"encoding/json"
	"strings"
)

// Wire types of the OpenAI-compatible chat surface. Only the fields this
// service reads or writes are modelled.

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// text flattens the message content. Clients send either a string or an
// array of parts; only text parts count, and other shapes fall back to their
// JSON encoding.
func (m chatMessage) text() string {
	switch content := m.Content.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(content)
	case []any:
		var b strings.Builder
		for _, item := range content {
			segment := ""
			switch part := item.(type) {
			case string:
				segment = part
			case map[string]any:
				segment, _ = part["text"].(string)
			}
			if segment = strings.TrimSpace(segment); segment == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(segment)
		}
		return b.String()
	default:
		raw, err := json.Marshal(content)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(raw))
	}
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// question is the newest user turn with text in it. Earlier turns are
// ignored: every question is answered against the event store afresh.
func (req chatCompletionRequest) question() (string, bool) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != "user" {
			continue
		}
		if text := req.Messages[i].text(); text != "" {
			return text, true
		}
	}
	return "", false
}

type modelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelListResponse struct {
	Object string        `json:"object"`
	Data   []modelObject `json:"data"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
	Usage   usage                  `json:"usage"`
}

type chatMessageDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type chatCompletionChunkChoice struct {
	Index        int              `json:"index"`
	Delta        chatMessageDelta `json:"delta"`
	FinishReason *string          `json:"finish_reason"`
}

type chatCompletionChunk struct {
	ID      string                      `json:"id"`
	Object  string                      `json:"object"`
	Created int64                       `json:"created"`
	Model   string                      `json:"model"`
	Choices []chatCompletionChunkChoice `json:"choices"`
}
