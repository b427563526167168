package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/club-events-assistant/internal/config"
)

type answererFake struct {
	mu        sync.Mutex
	answer    string
	questions []string
}

func (f *answererFake) Answer(_ context.Context, question string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	return f.answer
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, Dependencies{
		Answerer: &answererFake{answer: "The robotics workshop is on 2024-03-10 in Hall A."},
	}).Handler()
}

func TestListModelsAuthModes(t *testing.T) {
	handlerNoAuth := newTestHandler(config.Config{OpenAICompatModelID: "club-events-rag-v1"})

	reqNoAuth := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	resNoAuth := httptest.NewRecorder()
	handlerNoAuth.ServeHTTP(resNoAuth, reqNoAuth)
	if resNoAuth.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resNoAuth.Code)
	}

	var listResp modelListResponse
	if err := json.NewDecoder(resNoAuth.Body).Decode(&listResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if listResp.Object != "list" {
		t.Fatalf("expected object=list, got %s", listResp.Object)
	}
	if len(listResp.Data) == 0 || listResp.Data[0].ID != "club-events-rag-v1" {
		t.Fatalf("unexpected model list response: %+v", listResp.Data)
	}

	handlerWithAuth := newTestHandler(config.Config{
		OpenAICompatAPIKey:  "secret-key",
		OpenAICompatModelID: "club-events-rag-v1",
	})

	reqUnauthorized := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	resUnauthorized := httptest.NewRecorder()
	handlerWithAuth.ServeHTTP(resUnauthorized, reqUnauthorized)
	if resUnauthorized.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", resUnauthorized.Code)
	}

	reqAuthorized := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	reqAuthorized.Header.Set("Authorization", "Bearer secret-key")
	resAuthorized := httptest.NewRecorder()
	handlerWithAuth.ServeHTTP(resAuthorized, reqAuthorized)
	if resAuthorized.Code != http.StatusOK {
		t.Fatalf("expected 200 with auth, got %d", resAuthorized.Code)
	}

	chatPayload, _ := json.Marshal(map[string]any{
		"model": "club-events-rag-v1",
		"messages": []map[string]any{
			{"role": "user", "content": "test"},
		},
	})
	reqChatUnauthorized := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(chatPayload))
	reqChatUnauthorized.Header.Set("Content-Type", "application/json")
	resChatUnauthorized := httptest.NewRecorder()
	handlerWithAuth.ServeHTTP(resChatUnauthorized, reqChatUnauthorized)
	if resChatUnauthorized.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for chat without auth, got %d", resChatUnauthorized.Code)
	}
}

func TestChatCompletionsJSONAndStream(t *testing.T) {
	answerer := &answererFake{answer: "The robotics workshop is on 2024-03-10 in Hall A."}
	router := NewRouter(config.Config{OpenAICompatModelID: "club-events-rag-v1"}, Dependencies{Answerer: answerer})
	router.openAICompatStreamChunkChars = 8
	handler := router.Handler()

	jsonPayload, _ := json.Marshal(map[string]any{
		"model": "club-events-rag-v1",
		"messages": []map[string]any{
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": "what happened last year?"},
			{"role": "assistant", "content": "several events"},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": "when is the robotics workshop?"},
			}},
		},
	})

	jsonReq := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(jsonPayload))
	jsonReq.Header.Set("Content-Type", "application/json")
	jsonRes := httptest.NewRecorder()
	handler.ServeHTTP(jsonRes, jsonReq)
	if jsonRes.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", jsonRes.Code)
	}

	var chatResp chatCompletionResponse
	if err := json.NewDecoder(jsonRes.Body).Decode(&chatResp); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if len(chatResp.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(chatResp.Choices))
	}
	if chatResp.Choices[0].Message.Content != answerer.answer {
		t.Fatalf("unexpected assistant content %#v", chatResp.Choices[0].Message.Content)
	}
	if chatResp.Usage.CompletionTokens == 0 || chatResp.Usage.TotalTokens != chatResp.Usage.PromptTokens+chatResp.Usage.CompletionTokens {
		t.Fatalf("unexpected usage %+v", chatResp.Usage)
	}
	if len(answerer.questions) != 1 || answerer.questions[0] != "when is the robotics workshop?" {
		t.Fatalf("expected latest user message to be asked, got %v", answerer.questions)
	}

	streamPayload, _ := json.Marshal(map[string]any{
		"model":  "club-events-rag-v1",
		"stream": true,
		"messages": []map[string]any{
			{"role": "user", "content": "when is the robotics workshop?"},
		},
	})
	streamReq := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(streamPayload))
	streamReq.Header.Set("Content-Type", "application/json")
	streamRes := httptest.NewRecorder()
	handler.ServeHTTP(streamRes, streamReq)
	if streamRes.Code != http.StatusOK {
		t.Fatalf("expected 200 for stream, got %d", streamRes.Code)
	}
	if !strings.Contains(streamRes.Header().Get("Content-Type"), "text/event-stream") {
		t.Fatalf("expected text/event-stream, got %s", streamRes.Header().Get("Content-Type"))
	}

	streamBody, _ := io.ReadAll(streamRes.Body)
	streamString := string(streamBody)
	if strings.Count(streamString, "chat.completion.chunk") < 3 {
		t.Fatalf("expected the answer split into several chunks: %s", streamString)
	}
	if !strings.Contains(streamString, `"finish_reason":"stop"`) {
		t.Fatalf("stream response does not finish with stop: %s", streamString)
	}
	if !strings.HasSuffix(streamString, "data: [DONE]\n\n") {
		t.Fatalf("stream response does not end with DONE marker: %s", streamString)
	}
}

func TestChatCompletionsRequiresUserText(t *testing.T) {
	handler := newTestHandler(config.Config{})

	payload, _ := json.Marshal(map[string]any{
		"messages": []map[string]any{
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": "   "},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatQuestionUsesNewestUserText(t *testing.T) {
	var req chatCompletionRequest
	raw := `{"messages":[
		{"role":"user","content":"When is the hackathon?"},
		{"role":"assistant","content":"On 2023-10-05."},
		{"role":"user","content":[{"type":"text","text":"Where is it"},{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":" held? "}]},
		{"role":"user","content":null}
	]}`
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, ok := req.question()
	if !ok || got != "Where is it\nheld?" {
		t.Fatalf("question() = %q, %v", got, ok)
	}

	if got := (chatMessage{Content: map[string]any{"k": "v"}}).text(); got != `{"k":"v"}` {
		t.Fatalf("expected JSON fallback, got %q", got)
	}
	if _, ok := (chatCompletionRequest{Messages: []chatMessage{{Role: "system", Content: "be brief"}}}).question(); ok {
		t.Fatalf("expected no question without a user turn")
	}
}

func TestSplitByRunesKeepsMultibyteCharacters(t *testing.T) {
	parts := splitByRunes("héllo wörld", 4)
	if strings.Join(parts, "") != "héllo wörld" {
		t.Fatalf("parts do not reassemble: %q", parts)
	}
	if len(parts) != 3 || parts[0] != "héll" {
		t.Fatalf("unexpected parts %q", parts)
	}

	if got := splitByRunes("  ", 4); len(got) != 1 || got[0] != "" {
		t.Fatalf("expected single empty part for blank text, got %q", got)
	}
}

func TestIsAuthorizedBearerHeader(t *testing.T) {
	cases := []struct {
		header string
		want   bool
	}{
		{"Bearer secret", true},
		{"  Bearer   secret  ", true},
		{"bearer secret", false},
		{"Bearer other", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isAuthorizedBearerHeader(tc.header, "secret"); got != tc.want {
			t.Fatalf("isAuthorizedBearerHeader(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}
