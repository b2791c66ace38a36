package modelclient

// rateTable holds per-million-token pricing for the models this engine
// commonly targets; entries are expressed as $/token (the table stores the
// already-divided per-token rate so callers never re-derive it). Models not
// listed cost nothing to account for, which is safe for local/self-hosted
// backends (Ollama, vLLM, Together, the testing stubs) where no real spend
// occurs.
var rateTable = map[string]Rate{
	"gpt-4o":              {InputPerToken: 2.50 / 1e6, OutputPerToken: 10.00 / 1e6},
	"gpt-4o-mini":          {InputPerToken: 0.15 / 1e6, OutputPerToken: 0.60 / 1e6},
	"gpt-4-turbo":          {InputPerToken: 10.00 / 1e6, OutputPerToken: 30.00 / 1e6},
	"claude-3-5-sonnet":    {InputPerToken: 3.00 / 1e6, OutputPerToken: 15.00 / 1e6},
	"claude-3-opus":        {InputPerToken: 15.00 / 1e6, OutputPerToken: 75.00 / 1e6},
	"claude-3-haiku":       {InputPerToken: 0.25 / 1e6, OutputPerToken: 1.25 / 1e6},
	"us.anthropic.claude-3-5-sonnet-20241022-v2:0": {InputPerToken: 3.00 / 1e6, OutputPerToken: 15.00 / 1e6},
}

// RateFor returns the configured price for modelName, or the zero Rate
// (free) if the model is unlisted.
func RateFor(modelName string) Rate {
	return rateTable[modelName]
}
