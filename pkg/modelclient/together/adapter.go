// Package together implements the Together Transport: the whole
// history is serialized into a single "<human>/<bot>:" prompt, with
// "<human>" as the stop token, since Together's older completion-style
// models this engine targets don't speak the chat-messages schema.
package together

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient"
)

const stopToken = "<human>"

// Adapter is a modelclient.Transport backed by Together's completions
// endpoint, using the "<human>/<bot>:" prompt convention.
type Adapter struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	topP        float64
}

// New creates an Adapter. baseURL defaults to Together's public API when
// empty.
func New(apiKey, baseURL, model string, temperature, topP float64) *Adapter {
	if baseURL == "" {
		baseURL = "https://api.together.xyz"
	}
	return &Adapter{
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		topP:        topP,
	}
}

// serializePrompt turns the history into the "<human>/<bot>:" prompt
// convention: every system and user message becomes a "<human>:" turn,
// every assistant message a "<bot>:" turn, terminated by an open "<bot>:"
// so the model continues as the assistant.
func serializePrompt(history []modelclient.Message) string {
	var b strings.Builder
	for _, m := range history {
		switch m.Role {
		case modelclient.RoleAssistant:
			b.WriteString("<bot>: ")
		default:
			b.WriteString("<human>: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("<bot>:")
	return b.String()
}

type completionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error string `json:"error,omitempty"`
}

// Submit implements modelclient.Transport.
func (a *Adapter) Submit(ctx context.Context, history []modelclient.Message) (string, int, int, error) {
	reqBody := completionRequest{
		Model:       a.model,
		Prompt:      serializePrompt(history),
		Temperature: a.temperature,
		TopP:        a.topP,
		Stop:        []string{stopToken},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, 0, fmt.Errorf("together: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, 0, fmt.Errorf("together: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("together: request failed: %w", err)
	}
	defer resp.Body.Close()

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, 0, fmt.Errorf("together: decoding response: %w", err)
	}
	if out.Error != "" {
		if strings.Contains(strings.ToLower(out.Error), "context") {
			return "", 0, 0, modelclient.ErrContextWindowExceeded
		}
		return "", 0, 0, fmt.Errorf("together: %s", out.Error)
	}
	if len(out.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("together: no choices returned")
	}

	return out.Choices[0].Text, out.Usage.PromptTokens, out.Usage.CompletionTokens, nil
}
