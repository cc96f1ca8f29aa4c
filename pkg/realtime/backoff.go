package realtime

import "time"

// DefaultBackoff returns the retry schedule used for dropped farm channels:
// 1s, 2s, 4s, 8s, 16s, capped at 16s.
func DefaultBackoff() Backoff {
	return Backoff{
		Min:    time.Second,
		Max:    16 * time.Second,
		Factor: 2.0,
	}
}

// Next returns the delay before the given retry attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	min := b.Min
	if min <= 0 {
		min = time.Second
	}
	max := b.Max
	if max <= 0 {
		max = 16 * time.Second
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2.0
	}

	wait := min
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if next > max {
			wait = max
			break
		}
		wait = next
	}
	return wait
}
