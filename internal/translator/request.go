package translator

import "strings"

// RequestOptions carries the configuration-derived defaults the
// translator falls back to when the caller omits them.
type RequestOptions struct {
	DefaultMaxTokens int64
}

// ToAnthropic implements §4.4: validate, fold leading (and any later)
// system messages into a single system prefix, wrap remaining turns as
// single text-block messages, and require the first non-system message
// to be "user".
func ToAnthropic(req OpenAIRequest, opts RequestOptions) (AnthropicRequest, error) {
	if strings.TrimSpace(req.Model) == "" {
		return AnthropicRequest{}, invalidRequest("model is required")
	}
	if len(req.Messages) == 0 {
		return AnthropicRequest{}, invalidRequest("messages must be non-empty")
	}

	var systemParts []string
	var rest []OpenAIMessage
	for _, m := range req.Messages {
		if m.Role == "system" {
			systemParts = append(systemParts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	if len(rest) == 0 {
		return AnthropicRequest{}, invalidRequest("messages must contain at least one non-system message")
	}
	if rest[0].Role != "user" {
		return AnthropicRequest{}, invalidRequest("first non-system message must have role \"user\", got %q", rest[0].Role)
	}

	messages := make([]AnthropicMessage, 0, len(rest))
	for _, m := range rest {
		if m.Role != "user" && m.Role != "assistant" {
			return AnthropicRequest{}, invalidRequest("unsupported message role %q", m.Role)
		}
		messages = append(messages, AnthropicMessage{
			Role:    m.Role,
			Content: []AnthropicTextBlock{{Type: "text", Text: m.Content}},
		})
	}

	maxTokens := opts.DefaultMaxTokens
	switch {
	case req.MaxTokens != nil:
		maxTokens = *req.MaxTokens
	case req.MaxCompletionTokens != nil:
		maxTokens = *req.MaxCompletionTokens
	}
	if maxTokens <= 0 {
		return AnthropicRequest{}, invalidRequest("max_tokens must be positive")
	}

	return AnthropicRequest{
		Model:       req.Model,
		System:      strings.Join(systemParts, "\n\n"),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
	}, nil
}
