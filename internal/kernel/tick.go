package kernel

import "time"

// tickRate mirrors the knhk-hot cycle_counter.rs calibration constant:
// 1 tick = 1 nanosecond at a 1GHz reference clock. Go has no portable RDTSC,
// so ticks here are derived from a monotonic wall-clock measurement
// calibrated once at engine bring-up rather than read directly from a
// cycle-counter register.
var tickRate = struct {
	nanosPerTick float64
}{nanosPerTick: 1.0}

// CalibrateTickRate times a known-cost loop against time.Now/time.Since and
// derives nanosPerTick, the divisor used to convert a measured wall-clock
// delta into a reported tick count. Call once during kernel bring-up; it is
// not safe to call concurrently with evaluation.
func CalibrateTickRate() float64 {
	const iterations = 100000
	start := time.Now()
	acc := uint64(0)
	for i := 0; i < iterations; i++ {
		acc += uint64(i)
	}
	elapsed := time.Since(start)
	_ = acc // defeat dead-code elimination of the calibration loop
	if elapsed <= 0 {
		tickRate.nanosPerTick = 1.0
		return tickRate.nanosPerTick
	}
	tickRate.nanosPerTick = float64(elapsed.Nanoseconds()) / float64(iterations)
	if tickRate.nanosPerTick <= 0 {
		tickRate.nanosPerTick = 1.0
	}
	return tickRate.nanosPerTick
}

// TickMeasurement brackets a kernel invocation with a start/stop pair,
// mirroring the Rust TickMeasurement start()/stop() API.
type TickMeasurement struct {
	start time.Time
	end   time.Time
}

// StartMeasurement begins timing a kernel invocation.
func StartMeasurement() TickMeasurement {
	return TickMeasurement{start: time.Now()}
}

// Stop ends the measurement and returns the observed tick count, converting
// the elapsed wall-clock duration via the calibrated tick rate.
func (m *TickMeasurement) Stop() uint32 {
	m.end = time.Now()
	elapsed := m.end.Sub(m.start)
	ticks := float64(elapsed.Nanoseconds()) / tickRate.nanosPerTick
	if ticks < 0 {
		ticks = 0
	}
	return uint32(ticks)
}
