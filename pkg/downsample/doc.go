/*
Package downsample turns irregular entity state history into fixed-cadence
chart series.

# The Problem

Entity history is event-sourced: a state change is recorded when it happens,
not on a clock. A thermostat might report twice a minute while heating and
then go silent for six hours. Charts want the opposite shape: one point per
fixed time step across the whole window.

Naive approaches get this wrong:

  - Sampling the nearest event per step ignores everything between steps.
  - Averaging the events inside a step counts a 10-second spike the same as
    a value that held for 25 minutes.

# Time-Weighted Bucketing

Downsample treats the history as a step function: each sample's value holds
until the next sample. The window [now-window, now) is cut into equal
buckets, and each bucket's value is the mean of the values that held during
it, weighted by how long they held:

	samples:  5─────┐10────────────┐20──────
	                │              │
	buckets:  [────────)[────────)[────────)
	           5,10 mix   10 only   10,20 mix

A 10-second spike to 1000 inside a 30-minute bucket moves the average by
1000*(10s/1800s), not by half the bucket.

Two conventions make the edges exact:

  - The first input sample is the anchor: the value already in effect at the
    window start (history sources provide it via an include-start option).
    The output is prefixed with one point at the window start carrying it.
  - A synthetic terminal marker at now closes the last open interval, so the
    final real sample is weighted up to the right edge of the window.

Buckets that no sample interval touches (gaps in caller-supplied history)
carry the last known value forward instead of dropping to zero.

# Usage

	samples, err := fetcher.FetchSamples(ctx, "sensor.living_room_temp", 24*time.Hour, now)
	if err != nil {
		// treat history as absent this cycle
	}
	series := downsample.Downsample(samples, 24*time.Hour, 4, now)
	// series[0] is the anchor at now-24h, then one point every 15 minutes

Passing pointsPerHour <= 0 returns the raw samples unchanged, for widgets
that want every event drawn as-is.
*/
package downsample
