// Package ollama implements the Ollama Transport: the native /api/chat
// endpoint, with a missing prompt-eval-count counted as zero input tokens
// rather than an error (local Ollama builds don't always report it).
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient"
)

// Adapter is a modelclient.Transport backed by a local or remote Ollama
// server's native chat endpoint.
type Adapter struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	temperature float64
	topP        float64
}

// New creates an Adapter pointed at baseURL (e.g. "http://localhost:11434").
func New(baseURL, model string, temperature, topP float64) *Adapter {
	return &Adapter{
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		topP:        topP,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type chatResponse struct {
	Message           chatMessage `json:"message"`
	PromptEvalCount   int         `json:"prompt_eval_count"`
	EvalCount         int         `json:"eval_count"`
	Done              bool        `json:"done"`
	Error             string      `json:"error,omitempty"`
}

// Submit implements modelclient.Transport.
func (a *Adapter) Submit(ctx context.Context, history []modelclient.Message) (string, int, int, error) {
	messages := make([]chatMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	reqBody := chatRequest{
		Model:    a.model,
		Messages: messages,
		Stream:   false,
		Options:  chatOptions{Temperature: a.temperature, TopP: a.topP},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, 0, fmt.Errorf("ollama: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", 0, 0, fmt.Errorf("ollama: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, 0, fmt.Errorf("ollama: decoding response: %w", err)
	}
	if out.Error != "" {
		return "", 0, 0, fmt.Errorf("ollama: %s", out.Error)
	}

	// prompt_eval_count is absent when Ollama reused the cached prompt
	// evaluation from a prior call; count that as 0 rather than treating it
	// as an error.
	return out.Message.Content, out.PromptEvalCount, out.EvalCount, nil
}
