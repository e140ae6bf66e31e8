package prompt

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/AnTengye/contractwatch/config"
	"github.com/AnTengye/contractwatch/llm"
	"github.com/AnTengye/contractwatch/pkg/logger"
)

// Policy controls how a stage calls the model.
// The zero value makes exactly one call with no timeout and no rate limit.
type Policy struct {
	MaxAttempts       int
	Backoff           time.Duration // doubled after every failed attempt
	Timeout           time.Duration // per attempt, 0 = none
	RequestsPerMinute int           // shared by every stage of an Invoker, 0 = unlimited
}

// PolicyFromConfig converts the pipeline config section into a Policy
func PolicyFromConfig(cfg *config.PipelineConfig) Policy {
	return Policy{
		MaxAttempts:       cfg.MaxAttempts,
		Backoff:           cfg.Backoff,
		Timeout:           cfg.Timeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}
}

// Invoker sends stage requests to a model under a Policy
type Invoker struct {
	model   llm.Model
	policy  Policy
	limiter *rate.Limiter
}

// NewInvoker creates an Invoker. All stages built from it share one rate limiter.
func NewInvoker(model llm.Model, policy Policy) *Invoker {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	inv := &Invoker{model: model, policy: policy}
	if policy.RequestsPerMinute > 0 {
		inv.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(policy.RequestsPerMinute)), 1)
	}
	return inv
}

// Model returns the backend the invoker calls
func (inv *Invoker) Model() llm.Model {
	return inv.model
}

func (inv *Invoker) call(ctx context.Context, req llm.Request) (string, error) {
	backoff := inv.policy.Backoff
	var lastErr error

	for attempt := 1; attempt <= inv.policy.MaxAttempts; attempt++ {
		if inv.limiter != nil {
			if err := inv.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		out, err := inv.attempt(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", err
		}
		if attempt == inv.policy.MaxAttempts {
			break
		}

		logger.Warn(ctx, "model call failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}
	}
	return "", lastErr
}

func (inv *Invoker) attempt(ctx context.Context, req llm.Request) (string, error) {
	if inv.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.policy.Timeout)
		defer cancel()
	}
	return inv.model.Generate(ctx, req)
}
