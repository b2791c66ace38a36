// Package bedrock implements the Bedrock non-Anthropic (DeepSeek-style)
// Transport: history is translated into Bedrock's "converse" shape,
// empty messages are skipped, and a default user message substitutes for an
// empty history so the Converse call never goes out with zero messages.
// It covers a single non-streaming Converse call (no tool-calling, no
// extended thinking, no streaming).
package bedrock

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient"
)

const defaultUserMessage = "Continue."

// Adapter is a modelclient.Transport backed by Bedrock's Converse API.
type Adapter struct {
	client      *bedrockruntime.Client
	model       string
	maxTokens   int32
	temperature float32
	topP        float32
}

// New creates an Adapter using the default AWS credential chain.
func New(ctx context.Context, region, model string, maxTokens int32, temperature, topP float32) (*Adapter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: loading AWS config: %w", err)
	}
	return &Adapter{
		client:      bedrockruntime.NewFromConfig(awsCfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
	}, nil
}

// Submit implements modelclient.Transport.
func (a *Adapter) Submit(ctx context.Context, history []modelclient.Message) (string, int, int, error) {
	messages, system := convertMessages(history)
	if len(messages) == 0 {
		messages = []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: defaultUserMessage}},
		}}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(a.model),
		Messages: messages,
		System:   system,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(a.maxTokens),
			Temperature: aws.Float32(a.temperature),
			TopP:        aws.Float32(a.topP),
		},
	}

	out, err := a.client.Converse(ctx, input)
	if err != nil {
		if isContextLengthError(err) {
			return "", 0, 0, modelclient.ErrContextWindowExceeded
		}
		return "", 0, 0, fmt.Errorf("bedrock converse request: %w", err)
	}

	var text strings.Builder
	if msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msgOut.Value.Content {
			if tb, ok := block.(*types.ContentBlockMemberText); ok {
				text.WriteString(tb.Value)
			}
		}
	}

	inTok, outTok := 0, 0
	if out.Usage != nil {
		inTok = int(aws.ToInt32(out.Usage.InputTokens))
		outTok = int(aws.ToInt32(out.Usage.OutputTokens))
	}

	return text.String(), inTok, outTok, nil
}

// convertMessages skips empty messages and splits out the system prompt
// into Bedrock's dedicated System field.
func convertMessages(history []modelclient.Message) ([]types.Message, []types.SystemContentBlock) {
	var messages []types.Message
	var system []types.SystemContentBlock

	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == modelclient.RoleSystem {
			system = append(system, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}

		role := types.ConversationRoleUser
		if m.Role == modelclient.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		messages = append(messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}

	return messages, system
}

func isContextLengthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too many input tokens") || strings.Contains(msg, "context")
}
