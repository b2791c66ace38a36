package modelclient

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// Config parameterizes a Client: which transport to call, what it costs,
// and the retry ceiling, cost limits, and duplicate suppression knobs.
type Config struct {
	ModelName            string
	Rate                 Rate
	MaxRetries           int     // 0 uses the default of ~10
	PerInstanceCostLimit float64 // <=0 disables the per-instance limit
	TotalCostLimit       float64 // <=0 disables the total limit
	SuppressDuplicates   bool
	MaxResamples         int // duplicate-guard resample ceiling, default 10
}

// Client is the uniform query(history) -> text contract every provider
// transport is wrapped in. It owns retry/backoff, response cleaning, cost
// accounting and limits, and the optional duplicate-response guard — none
// of which any Transport implementation needs to know about.
type Client struct {
	transport Transport
	cfg       Config

	mu          sync.Mutex
	stats       Stats
	seenRecent  map[string]struct{} // duplicate-response guard, current attempt only
}

// New wraps transport in the shared retry/stats/cleaning machinery.
func New(transport Transport, cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	if cfg.MaxResamples <= 0 {
		cfg.MaxResamples = 10
	}
	return &Client{
		transport:  transport,
		cfg:        cfg,
		seenRecent: map[string]struct{}{},
	}
}

// Query submits history to the underlying transport, retrying transient
// failures with exponential backoff+jitter (up to Config.MaxRetries),
// applying the uniform response-cleaning pipeline, updating stats, and
// enforcing cost limits. Cost-limit and context-window errors are not
// retried; everything else surfaced by Transport.Submit is treated as
// transient and retried.
func (c *Client) Query(ctx context.Context, history []Message) (string, error) {
	operation := func() (string, error) {
		text, inTok, outTok, err := c.transport.Submit(ctx, history)
		if err != nil {
			if IsContextWindowExceeded(err) || IsCostLimitExceeded(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}

		cleaned := Clean(text)

		if c.cfg.SuppressDuplicates {
			resampled, dupErr := c.resampleIfDuplicate(ctx, history, cleaned)
			if dupErr != nil {
				return "", backoff.Permanent(dupErr)
			}
			cleaned = resampled
		}

		if limitErr := c.accumulate(inTok, outTok); limitErr != nil {
			return "", backoff.Permanent(limitErr)
		}

		return cleaned, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)),
	)
	if err != nil {
		log.Warn().Err(err).Str("model", c.cfg.ModelName).Msg("model query failed after retries")
		return "", err
	}
	return result, nil
}

// resampleIfDuplicate implements the optional duplicate-response guard
//: if candidate was already returned earlier in this attempt,
// resample up to Config.MaxResamples times before accepting the duplicate
// anyway.
func (c *Client) resampleIfDuplicate(ctx context.Context, history []Message, candidate string) (string, error) {
	c.mu.Lock()
	_, dup := c.seenRecent[candidate]
	c.mu.Unlock()
	if !dup {
		c.mu.Lock()
		c.seenRecent[candidate] = struct{}{}
		c.mu.Unlock()
		return candidate, nil
	}

	for i := 0; i < c.cfg.MaxResamples; i++ {
		text, inTok, outTok, err := c.transport.Submit(ctx, history)
		if err != nil {
			return "", err
		}
		cleaned := Clean(text)
		if limitErr := c.accumulate(inTok, outTok); limitErr != nil {
			return "", limitErr
		}

		c.mu.Lock()
		_, stillDup := c.seenRecent[cleaned]
		if !stillDup {
			c.seenRecent[cleaned] = struct{}{}
		}
		c.mu.Unlock()

		if !stillDup {
			return cleaned, nil
		}
	}

	// Exhausted resamples: accept the duplicate rather than fail the attempt.
	return candidate, nil
}

// accumulate adds a call's token counts to the running stats, derives its
// cost from the configured rate, and returns ErrCostLimitExceeded if either
// the per-instance or total limit has now been crossed.
func (c *Client) accumulate(inputTokens, outputTokens int) error {
	cost := float64(inputTokens)*c.cfg.Rate.InputPerToken + float64(outputTokens)*c.cfg.Rate.OutputPerToken

	c.mu.Lock()
	c.stats.TokensSent += int64(inputTokens)
	c.stats.TokensReceived += int64(outputTokens)
	c.stats.APICalls++
	c.stats.InstanceCost += cost
	c.stats.TotalCost += cost
	instanceCost := c.stats.InstanceCost
	totalCost := c.stats.TotalCost
	c.mu.Unlock()

	if c.cfg.PerInstanceCostLimit > 0 && instanceCost >= c.cfg.PerInstanceCostLimit {
		return &ErrCostLimitExceeded{InstanceCost: instanceCost, TotalCost: totalCost, Limit: c.cfg.PerInstanceCostLimit, Scope: "instance"}
	}
	if c.cfg.TotalCostLimit > 0 && totalCost >= c.cfg.TotalCostLimit {
		return &ErrCostLimitExceeded{InstanceCost: instanceCost, TotalCost: totalCost, Limit: c.cfg.TotalCostLimit, Scope: "total"}
	}
	return nil
}

// Stats returns a snapshot of the client's running totals.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ResetInstanceCost zeroes the per-instance cost counter, called by the
// engine between attempts since instance_cost is scoped to one attempt
// while total_cost accumulates across the whole client lifetime.
func (c *Client) ResetInstanceCost() {
	c.mu.Lock()
	c.stats.InstanceCost = 0
	c.seenRecent = map[string]struct{}{}
	c.mu.Unlock()
}

