package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimited wraps a Provider so every call first takes a token from a
// shared bucket. Parallel callers therefore share one request budget.
type rateLimited struct {
	p   Provider
	lim *rate.Limiter
}

// NewRateLimited limits p to rps requests per second with the given burst.
// A non-positive rps returns p unchanged.
func NewRateLimited(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{p: p, lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := r.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return r.p.Chat(ctx, req)
}

func (r *rateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return r.p.Embed(ctx, texts)
}
