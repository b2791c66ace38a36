// Package anthropic implements the Anthropic Transport: consecutive
// same-role messages are collapsed, the system prompt is extracted into the
// dedicated System field, and empty messages are replaced by "(No output)"
// before the request is submitted. The same collapsing applies whether the
// backend is native Anthropic or Bedrock-hosted Anthropic — both speak the
// same Messages API shape through anthropic-sdk-go's Bedrock option. It
// covers a single non-streaming completion call.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient"
)

const emptyMessagePlaceholder = "(No output)"

// Adapter is a modelclient.Transport backed by the Anthropic Messages API,
// reachable either directly (New) or through Bedrock (NewBedrock).
type Adapter struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	topP        float64
}

// New creates an Adapter talking to the native Anthropic API.
func New(apiKey, model string, maxTokens int64, temperature, topP float64) *Adapter {
	return &Adapter{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
	}
}

// NewBedrock creates an Adapter talking to Bedrock-hosted Anthropic models
// via anthropic-sdk-go's Bedrock transport, using the AWS credential chain
// from the process environment (ISENGARD_PRODUCTION_ACCOUNT,
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN ).
func NewBedrock(model string, maxTokens int64, temperature, topP float64, bedrockOpt option.RequestOption) *Adapter {
	return &Adapter{
		client:      anthropic.NewClient(bedrockOpt),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
	}
}

// Submit implements modelclient.Transport.
func (a *Adapter) Submit(ctx context.Context, history []modelclient.Message) (string, int, int, error) {
	system, collapsed := prepare(history)

	if len(collapsed) == 0 {
		return "", 0, 0, fmt.Errorf("anthropic: no messages to send after collapsing")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Messages:    collapsed,
		Temperature: anthropic.Float(a.temperature),
		TopP:        anthropic.Float(a.topP),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		if isContextLengthError(err) {
			return "", 0, 0, modelclient.ErrContextWindowExceeded
		}
		return "", 0, 0, fmt.Errorf("anthropic completion request: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant := block.AsAny(); variant != nil {
			if tb, ok := variant.(anthropic.TextBlock); ok {
				text.WriteString(tb.Text)
			}
		}
	}

	return text.String(), int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens), nil
}

// prepare extracts the system prompt and collapses consecutive same-role
// messages into single turns, substituting the empty-message placeholder
// where needed.
func prepare(history []modelclient.Message) (string, []anthropic.MessageParam) {
	var system strings.Builder

	// Collapse in a plain intermediate form first (role -> joined text), then
	// build SDK message params in one pass, since the SDK's content-block
	// params aren't convenient to mutate in place once constructed.
	type turn struct {
		role  modelclient.Role
		parts []string
	}
	var turns []turn

	for _, m := range history {
		if m.Role == modelclient.RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
			continue
		}

		content := m.Content
		if strings.TrimSpace(content) == "" {
			content = emptyMessagePlaceholder
		}

		if len(turns) > 0 && turns[len(turns)-1].role == m.Role {
			turns[len(turns)-1].parts = append(turns[len(turns)-1].parts, content)
			continue
		}
		turns = append(turns, turn{role: m.Role, parts: []string{content}})
	}

	collapsed := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.parts, "\n"))
		if t.role == modelclient.RoleAssistant {
			collapsed = append(collapsed, anthropic.NewAssistantMessage(block))
		} else {
			collapsed = append(collapsed, anthropic.NewUserMessage(block))
		}
	}

	return system.String(), collapsed
}

func isContextLengthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context") && (strings.Contains(msg, "too long") || strings.Contains(msg, "exceed"))
}
