// Package modelclient is the Model Client Abstraction (C8): a uniform
// query(history) -> text contract over the CTF solver's language-model
// backends, with one consolidated backoff policy, one response-cleaning
// pipeline, and one cost accountant shared by every provider transport.
//
// Provider-specific retry/backoff/response-cleaning logic does not belong
// scattered across the model layer: each provider
// package under this one implements only Transport.Submit, a thin
// request/response translation, and everything else — retry, stats,
// duplicate suppression, cost limits — lives here exactly once.
package modelclient

import (
	"context"
	"errors"
	"fmt"
)

// Role is the speaker of one message in a query history.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation sent to Query.
type Message struct {
	Role    Role
	Content string
}

// ErrCostLimitExceeded is returned, non-retryably, once a configured
// per-instance or total cost limit has been crossed.
type ErrCostLimitExceeded struct {
	InstanceCost float64
	TotalCost    float64
	Limit        float64
	Scope        string // "instance" or "total"
}

func (e *ErrCostLimitExceeded) Error() string {
	return fmt.Sprintf("%s cost limit exceeded: limit=%.4f instance_cost=%.4f total_cost=%.4f", e.Scope, e.Limit, e.InstanceCost, e.TotalCost)
}

// ErrContextWindowExceeded is returned, non-retryably, when the provider
// reports that the request's token count overflowed the model's context
// window. The engine treats this as fatal to the attempt but not the run.
var ErrContextWindowExceeded = errors.New("context window exceeded")

// IsContextWindowExceeded reports whether err (or anything it wraps) is
// ErrContextWindowExceeded.
func IsContextWindowExceeded(err error) bool {
	return errors.Is(err, ErrContextWindowExceeded)
}

// IsCostLimitExceeded reports whether err (or anything it wraps) is an
// *ErrCostLimitExceeded.
func IsCostLimitExceeded(err error) bool {
	var e *ErrCostLimitExceeded
	return errors.As(err, &e)
}

// Stats is the per-client running total of token usage and spend:
// additive across calls, queried by the engine for end-of-run reporting
// and per-attempt cost-limit enforcement.
type Stats struct {
	TotalCost      float64
	InstanceCost   float64
	TokensSent     int64
	TokensReceived int64
	APICalls       int
}

// Rate is the per-token price for one model, used to turn a call's token
// counts into a cost delta.
type Rate struct {
	InputPerToken  float64
	OutputPerToken float64
}

// Transport is what each provider package implements: translate history
// into that provider's wire shape, submit it, and return the completion
// text plus the token counts the provider reported. Transport
// implementations must not retry, clean the response, or touch cost
// accounting — Client does all three uniformly.
type Transport interface {
	Submit(ctx context.Context, history []Message) (text string, inputTokens, outputTokens int, err error)
}
