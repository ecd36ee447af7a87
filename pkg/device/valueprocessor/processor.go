// Package valueprocessor provides small stateful transforms applied to a
// datapoint's successive reported values, such as smoothing or debouncing a
// noisy sensor reading before it reaches a device model's external state.
package valueprocessor

import (
	"math"
	"time"
)

// Processor transforms one value in a stream of successive values for a
// single datapoint. Implementations are expected to close over whatever
// state they need between calls; they are not safe for concurrent use.
type Processor func(value float64) float64

// Compose chains processors in the order given: the output of each feeds
// the next.
//
//	Compose(MovingAverage(4), Debounce(30*time.Second), Round(1))
func Compose(processors ...Processor) Processor {
	return func(value float64) float64 {
		for _, p := range processors {
			value = p(value)
		}
		return value
	}
}

// MovingAverage returns the mean of the last n values seen (fewer while the
// window is still filling).
func MovingAverage(n int) Processor {
	var window []float64
	return func(value float64) float64 {
		window = append(window, value)
		if len(window) > n {
			window = window[len(window)-n:]
		}
		var sum float64
		for _, v := range window {
			sum += v
		}
		return sum / float64(len(window))
	}
}

// Debounce returns the first value observed within each window of duration
// d, ignoring subsequent values until the window elapses.
func Debounce(d time.Duration) Processor {
	var (
		have bool
		last float64
		at   time.Time
	)
	return func(value float64) float64 {
		now := time.Now()
		if !have || now.After(at.Add(d)) || now.Equal(at.Add(d)) {
			last = value
			at = now
			have = true
		}
		return last
	}
}

// Round rounds to n decimal places.
func Round(n int) Processor {
	scale := 1.0
	for i := 0; i < n; i++ {
		scale *= 10
	}
	return func(value float64) float64 {
		return math.Round(value*scale) / scale
	}
}
