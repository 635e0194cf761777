package translator

import (
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
)

// NewCompletionID generates the "chatcmpl-" + 24-char id the data
// model calls for, reusing google/uuid's random generator rather than
// hand-rolling another source of randomness.
func NewCompletionID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// FromAnthropic implements §4.5: concatenate text blocks, map the stop
// reason, and copy usage counters. Reuses the pinned anthropic-sdk-go
// wire types instead of redeclaring Anthropic's response shape.
func FromAnthropic(msg anthropic.Message, requestedModel string) CompletionResponse {
	var content strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}

	prompt := msg.Usage.InputTokens
	completion := msg.Usage.OutputTokens

	return CompletionResponse{
		ID:      NewCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []Choice{
			{
				Index: 0,
				Message: Message{
					Role:    "assistant",
					Content: content.String(),
				},
				FinishReason: MapFinishReason(string(msg.StopReason)),
			},
		},
		Usage: Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}
}
