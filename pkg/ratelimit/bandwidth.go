package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Bandwidth caps a byte stream at a fixed rate.
type Bandwidth struct {
	limiter *rate.Limiter
	burst   int
}

// NewBandwidth returns a cap of bytesPerSecond, or nil when it is not positive.
// A nil *Bandwidth never blocks.
func NewBandwidth(bytesPerSecond int64) *Bandwidth {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(bytesPerSecond)
	if burst < 32*1024 {
		burst = 32 * 1024
	}
	return &Bandwidth{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
		burst:   burst,
	}
}

// WaitN blocks until n bytes may be written.
func (b *Bandwidth) WaitN(ctx context.Context, n int) error {
	if b == nil {
		return nil
	}
	for n > 0 {
		chunk := n
		if chunk > b.burst {
			chunk = b.burst
		}
		if err := b.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
