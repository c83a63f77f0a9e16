package cluster

import (
	"context"

	"golang.org/x/time/rate"
)

// limitedEmbedder wraps an Embedder with a token-bucket limiter so a burst of
// concurrent candidate scoring never exceeds the provider's request rate.
type limitedEmbedder struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewLimitedEmbedder caps outbound embedding calls to ratePerSecond with the
// given burst so a burst of concurrent candidate scoring never exceeds the
// provider's request rate.
func NewLimitedEmbedder(inner Embedder, ratePerSecond float64, burst int) Embedder {
	return &limitedEmbedder{inner: inner, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (l *limitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.Embed(ctx, text)
}

type limitedJudge struct {
	inner   Judge
	limiter *rate.Limiter
}

// NewLimitedJudge caps outbound judge calls the same way NewLimitedEmbedder does.
func NewLimitedJudge(inner Judge, ratePerSecond float64, burst int) Judge {
	return &limitedJudge{inner: inner, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (l *limitedJudge) Judge(ctx context.Context, reportText, candidateSummary string) (float64, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return l.inner.Judge(ctx, reportText, candidateSummary)
}
