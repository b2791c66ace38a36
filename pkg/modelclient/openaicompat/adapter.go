// Package openaicompat implements the OpenAI-compatible Transport:
// history passes straight through as the `messages` field. This also
// services local vLLM and Ollama deployments that speak the OpenAI chat
// schema, by pointing BaseURL at them instead of api.openai.com. It covers
// a single non-streaming completion call (no tool-calling, no structured
// outputs, no streaming).
package openaicompat

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient"
)

// Adapter is a modelclient.Transport backed by an OpenAI-compatible chat
// completions endpoint.
type Adapter struct {
	client      openai.Client
	model       string
	temperature float64
	topP        float64
}

// New creates an Adapter. baseURL may be empty to use the default OpenAI
// endpoint, or point at a local vLLM/Ollama-compat server.
func New(apiKey, baseURL, model string, temperature, topP float64) *Adapter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Adapter{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
		topP:        topP,
	}
}

// Submit implements modelclient.Transport.
func (a *Adapter) Submit(ctx context.Context, history []modelclient.Message) (string, int, int, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case modelclient.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case modelclient.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(a.model),
		Messages:    messages,
		Temperature: openai.Float(a.temperature),
		TopP:        openai.Float(a.topP),
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if isContextLengthError(err) {
			return "", 0, 0, modelclient.ErrContextWindowExceeded
		}
		return "", 0, 0, fmt.Errorf("openai-compatible completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("openai-compatible completion returned no choices")
	}

	text := resp.Choices[0].Message.Content
	return text, int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens), nil
}

// isContextLengthError reports whether err looks like an OpenAI
// "context_length_exceeded" / "maximum context length" API error.
func isContextLengthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context_length_exceeded") ||
		strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "context length")
}
