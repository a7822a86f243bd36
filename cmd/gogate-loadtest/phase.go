package main

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	firstErr error
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
}

// runPhase calls op n times from concurrency workers. Each worker keeps
// its own latency samples; they are merged once every worker is done.
func runPhase(ctx context.Context, n, concurrency int, limiter *rate.Limiter, op func(i int, r *rand.Rand) error) phaseStats {
	var (
		wg       sync.WaitGroup
		cursor   atomic.Int64
		failures atomic.Int64
		errOnce  sync.Once
		firstErr error
		samples  = make([][]time.Duration, concurrency)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, n/concurrency+1)
			for {
				i := int(cursor.Add(1)) - 1
				if i >= n {
					break
				}
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						break
					}
				}
				t0 := time.Now()
				err := op(i, r)
				local = append(local, time.Since(t0))
				if err != nil {
					failures.Add(1)
					errOnce.Do(func() { firstErr = err })
				}
			}
			samples[worker] = local
		}(w)
	}
	wg.Wait()

	var merged []time.Duration
	for _, s := range samples {
		merged = append(merged, s...)
	}
	stats := computeStats(time.Since(start), merged)
	stats.failures = failures.Load()
	stats.firstErr = firstErr
	return stats
}

func computeStats(total time.Duration, samples []time.Duration) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total: total,
		ops:   len(samples),
		p50:   percentile(samples, 50),
		p95:   percentile(samples, 95),
		p99:   percentile(samples, 99),
	}
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func (s phaseStats) opsPerSecond() float64 {
	if s.total <= 0 {
		return 0
	}
	return float64(s.ops) / s.total.Seconds()
}

func (s phaseStats) summary(name string) string {
	return fmt.Sprintf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s",
		name, s.ops, s.failures,
		s.total.Round(time.Millisecond), s.opsPerSecond(),
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond))
}
