package session

import (
	"context"

	"golang.org/x/time/rate"
)

// pacer throttles the tick loop to the sample rate in realtime mode.
type pacer struct {
	limiter *rate.Limiter
	hz      float64
}

func newPacer(hz float64) *pacer {
	if hz <= 0 {
		hz = settingsFallbackHz
	}
	return &pacer{
		limiter: rate.NewLimiter(rate.Limit(hz), 1),
		hz:      hz,
	}
}

const settingsFallbackHz = 30

func (p *pacer) wait(ctx context.Context, hz float64) error {
	if hz > 0 && hz != p.hz {
		p.limiter.SetLimit(rate.Limit(hz))
		p.hz = hz
	}
	return p.limiter.Wait(ctx)
}
