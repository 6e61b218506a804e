package sampler

import (
	"fmt"
	"math"

	"github.com/eleven-am/kickflip/internal/shared"
)

func Interval(duration float64) float64 {
	if duration <= 0 || math.IsNaN(duration) {
		return 0
	}
	return math.Ceil(duration / MaxSamples)
}

// Timestamps returns the sample points 0, I, 2I, ... <= duration. A zero
// duration yields a single sample at t=0.
func Timestamps(duration float64) ([]float64, error) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return nil, fmt.Errorf("%w: invalid video duration %v", shared.ErrExtraction, duration)
	}

	interval := Interval(duration)
	if interval == 0 {
		return []float64{0}, nil
	}

	n := int(math.Floor(duration / interval))
	times := make([]float64, 0, n+1)
	for k := 0; k <= n; k++ {
		times = append(times, float64(k)*interval)
	}
	return times, nil
}
