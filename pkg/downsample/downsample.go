package downsample

import (
	"math"
	"time"
)

// Sample is a single point of a history series.
// For raw input, Timestamp is the instant the value became effective and the
// first sample is the anchor: the value already in effect at the start of the
// requested window. For downsampled output, Timestamp is the bucket's end.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Downsample converts an irregular sequence of state samples into a
// fixed-cadence series of time-weighted bucket averages covering
// [now-window, now).
//
// Each raw sample holds its value until the next sample (step function), so a
// bucket's value is the mean of whatever values held during it, weighted by
// how long they held. A short spike shifts a bucket's average only in
// proportion to its duration. Buckets no sample interval touches carry the
// last known value forward. The result is prefixed with one anchor point at
// the window start carrying the first sample's value, so a line can be drawn
// from the window's left edge; total length is ceil(window/bucketWidth)+1.
//
// pointsPerHour <= 0 or an empty input disables downsampling: the input is
// returned unchanged. This is a documented escape hatch, not an error.
//
// The statistic is always the time-weighted mean, never a per-bucket median.
// The function is pure: identical samples, window, pointsPerHour and now
// produce identical output.
func Downsample(samples []Sample, window time.Duration, pointsPerHour float64, now time.Time) []Sample {
	if pointsPerHour <= 0 || len(samples) == 0 {
		return samples
	}

	windowStart := now.Add(-window)
	bucketWidth := time.Duration(float64(time.Hour) / pointsPerHour)
	bucketCount := int(math.Ceil(float64(window) / float64(bucketWidth)))

	// Close the final open interval with a terminal marker at now, so the
	// last real sample contributes a bounded duration. The marker is not a
	// real sample and never feeds the carry-forward tracker.
	closed := make([]Sample, 0, len(samples)+1)
	closed = append(closed, samples...)
	closed = append(closed, Sample{Timestamp: now, Value: samples[len(samples)-1].Value})

	result := make([]Sample, 0, bucketCount+1)
	result = append(result, Sample{Timestamp: windowStart, Value: samples[0].Value})

	lastKnown := samples[0].Value
	for i := 0; i < bucketCount; i++ {
		bucketStart := windowStart.Add(time.Duration(i) * bucketWidth)
		bucketEnd := bucketStart.Add(bucketWidth)
		if bucketEnd.After(now) {
			// Window not evenly divisible by bucket width: the last
			// bucket is truncated at now, never extended past it.
			bucketEnd = now
		}

		// Overlap scan over consecutive sample pairs. O(buckets*samples),
		// fine at chart resolutions (points/hour * window hours).
		var weighted float64
		var total float64
		for j := 0; j < len(closed)-1; j++ {
			start := closed[j].Timestamp
			if start.Before(bucketStart) {
				start = bucketStart
			}
			end := closed[j+1].Timestamp
			if end.After(bucketEnd) {
				end = bucketEnd
			}
			// Strictly positive overlap only: a boundary touch or an
			// interval entirely outside the bucket contributes nothing.
			if end.After(start) {
				d := end.Sub(start).Seconds()
				weighted += d * closed[j].Value
				total += d
			}
		}

		value := lastKnown
		if total > 0 {
			value = weighted / total
			// Advance the carry-forward tracker to the latest real
			// sample at or before this bucket's end.
			for j := len(samples) - 1; j >= 0; j-- {
				if !samples[j].Timestamp.After(bucketEnd) {
					lastKnown = samples[j].Value
					break
				}
			}
		}

		result = append(result, Sample{Timestamp: bucketEnd, Value: value})
	}

	return result
}
