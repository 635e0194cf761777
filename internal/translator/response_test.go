package translator

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeMessage(t *testing.T, raw string) anthropic.Message {
	t.Helper()
	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	return msg
}

// TestFromAnthropic_S2 implements spec.md scenario S2.
func TestFromAnthropic_S2(t *testing.T) {
	msg := decodeMessage(t, `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-0",
		"content": [{"type": "text", "text": "pong"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 1}
	}`)

	resp := FromAnthropic(msg, "claude-sonnet-4-0")

	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "pong", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, Usage{PromptTokens: 10, CompletionTokens: 1, TotalTokens: 11}, resp.Usage)
	assert.True(t, strings.HasPrefix(resp.ID, "chatcmpl-"))
}

func TestFromAnthropic_ConcatenatesMultipleTextBlocks(t *testing.T) {
	msg := decodeMessage(t, `{
		"id": "msg_01", "type": "message", "role": "assistant", "model": "m",
		"content": [{"type": "text", "text": "hello "}, {"type": "text", "text": "world"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`)

	resp := FromAnthropic(msg, "m")
	assert.Equal(t, "hello world", resp.Choices[0].Message.Content)
}

func TestFromAnthropic_IgnoresNonTextBlocks(t *testing.T) {
	msg := decodeMessage(t, `{
		"id": "msg_01", "type": "message", "role": "assistant", "model": "m",
		"content": [
			{"type": "tool_use", "id": "tu_1", "name": "lookup", "input": {}},
			{"type": "text", "text": "answer"}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`)

	resp := FromAnthropic(msg, "m")
	assert.Equal(t, "answer", resp.Choices[0].Message.Content)
	assert.Equal(t, "tool_calls", resp.Choices[0].FinishReason)
}

func TestMapFinishReason(t *testing.T) {
	cases := map[string]string{
		"end_turn":      "stop",
		"stop_sequence": "stop",
		"max_tokens":    "length",
		"tool_use":      "tool_calls",
		"":              "stop",
	}
	for reason, want := range cases {
		assert.Equal(t, want, MapFinishReason(reason), "stop_reason=%q", reason)
	}
}

func TestFromAnthropic_EchoesRequestedModelWhenUpstreamOmitsIt(t *testing.T) {
	msg := decodeMessage(t, `{
		"id": "msg_01", "type": "message", "role": "assistant",
		"content": [{"type": "text", "text": "hi"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`)

	resp := FromAnthropic(msg, "requested-model")
	assert.Equal(t, "requested-model", resp.Model)
}

func TestNewCompletionID_Format(t *testing.T) {
	id := NewCompletionID()
	assert.True(t, strings.HasPrefix(id, "chatcmpl-"))
	assert.Len(t, strings.TrimPrefix(id, "chatcmpl-"), 24)
}
