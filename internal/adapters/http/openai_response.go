package httpadapter

import (
	"fmt"
	"strings"
	"time"
)

func newCompletionID() string {
	return fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano())
}

func buildTextChatCompletionResponse(completionID string, created int64, modelID string, promptText string, answerText string) chatCompletionResponse {
	return chatCompletionResponse{
		ID:      completionID,
		Object:  "chat.completion",
		Created: created,
		Model:   modelID,
		Choices: []chatCompletionChoice{
			{
				Index: 0,
				Message: chatMessage{
					Role:    "assistant",
					Content: answerText,
				},
				FinishReason: "stop",
			},
		},
		Usage: estimateUsage(promptText, answerText),
	}
}

// estimateUsage counts whitespace-separated words; there is no tokenizer on
// this side of the oracle.
func estimateUsage(prompt string, completion string) usage {
	promptTokens := estimateTokenCount(prompt)
	completionTokens := estimateTokenCount(completion)
	return usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

func estimateTokenCount(text string) int {
	return len(strings.Fields(text))
}
