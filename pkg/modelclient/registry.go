package modelclient

import (
	"context"
	"fmt"
	"os"

	anthropicbedrock "github.com/anthropics/anthropic-sdk-go/bedrock"

	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient/anthropic"
	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient/bedrock"
	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient/ollama"
	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient/openaicompat"
	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient/stub"
	"github.com/Cyber-Gym/enigma-plus/pkg/modelclient/together"
)

// ModelSettings is the subset of the run configuration's model section New
// needs to build a Transport, kept decoupled from pkg/config so modelclient
// has no import-cycle dependency on it.
type ModelSettings struct {
	Provider             string
	Name                 string
	HostURL              string
	Temperature          float64
	TopP                 float64
	MaxRetries           int
	PerInstanceCostLimit float64
	TotalCostLimit       float64
	SuppressDuplicates   bool
	AWSRegion            string
	MaxTokens            int64
}

// NewFromSettings constructs a Client whose Transport matches
// settings.Provider. The returned Client already has the shared
// retry/stats/cleaning machinery installed; callers only ever see Query
// and Stats.
func NewFromSettings(ctx context.Context, settings ModelSettings) (*Client, error) {
	transport, err := newTransport(ctx, settings)
	if err != nil {
		return nil, err
	}

	if settings.MaxTokens <= 0 {
		settings.MaxTokens = 4096
	}

	return New(transport, Config{
		ModelName:            settings.Name,
		Rate:                 RateFor(settings.Name),
		MaxRetries:           settings.MaxRetries,
		PerInstanceCostLimit: settings.PerInstanceCostLimit,
		TotalCostLimit:       settings.TotalCostLimit,
		SuppressDuplicates:   settings.SuppressDuplicates,
	}), nil
}

func newTransport(ctx context.Context, s ModelSettings) (Transport, error) {
	switch s.Provider {
	case "openai", "vllm":
		return openaicompat.New(os.Getenv("OPENAI_API_KEY"), s.HostURL, s.Name, s.Temperature, s.TopP), nil

	case "anthropic":
		return anthropic.New(os.Getenv("ANTHROPIC_API_KEY"), s.Name, s.MaxTokens, s.Temperature, s.TopP), nil

	case "bedrock-anthropic":
		return anthropic.NewBedrock(s.Name, s.MaxTokens, s.Temperature, s.TopP, anthropicbedrock.WithLoadDefaultConfig(ctx)), nil

	case "bedrock":
		return bedrock.New(ctx, s.AWSRegion, s.Name, int32(s.MaxTokens), float32(s.Temperature), float32(s.TopP))

	case "ollama":
		baseURL := s.HostURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(baseURL, s.Name, s.Temperature, s.TopP), nil

	case "together":
		return together.New(os.Getenv("TOGETHER_API_KEY"), s.HostURL, s.Name, s.Temperature, s.TopP), nil

	case "replay":
		return stub.NewReplay(nil), nil

	case "human":
		return stub.NewHuman(os.Stdin, os.Stdout), nil

	case "instant_empty_submit":
		return stub.NewInstantEmptySubmit(""), nil

	default:
		return nil, fmt.Errorf("modelclient: unrecognized provider %q", s.Provider)
	}
}
