// Package gate implements the corpus driver's exit-code gates: a timing
// gate over p90 step latency, and a rate gate over pass/fail fractions,
// each returning exit 0 (pass), 1 (regression), or 2 (no samples).
package gate

import "fmt"

// Outcome is the gate's verdict, mapped to the process exit code by the CLI.
type Outcome int

const (
	Pass Outcome = 0
	Fail Outcome = 1
	Error Outcome = 2
)

// TimingResult carries the message the CLI should print alongside Outcome.
type TimingResult struct {
	Outcome Outcome
	Message string
}

// TimingGate evaluates a p90 sample (nil when no successful sample exists)
// against a threshold in milliseconds.
func TimingGate(name string, p90Ms *float64, thresholdMs float64) TimingResult {
	if p90Ms == nil {
		return TimingResult{Outcome: Error, Message: fmt.Sprintf("TIMING GATE ERROR: no successful %s samples", name)}
	}
	if *p90Ms > thresholdMs {
		return TimingResult{Outcome: Fail, Message: fmt.Sprintf("TIMING REGRESSION: %s p90=%.1fms exceeds threshold=%.1fms", name, *p90Ms, thresholdMs)}
	}
	return TimingResult{Outcome: Pass, Message: fmt.Sprintf("%s p90=%.1fms within threshold=%.1fms", name, *p90Ms, thresholdMs)}
}

// RateResult is the RateGate's verdict.
type RateResult struct {
	Outcome Outcome
	Message string
}

// RateGate compares an observed rate in [0,1] against a minimum, failing
// (exit 1) when it falls short, erroring (exit 2) when there were no
// attempts to compute a rate from.
func RateGate(name string, rate *float64, minimum float64) RateResult {
	if rate == nil {
		return RateResult{Outcome: Error, Message: fmt.Sprintf("RATE GATE ERROR: no samples for %s", name)}
	}
	if *rate < minimum {
		return RateResult{Outcome: Fail, Message: fmt.Sprintf("RATE REGRESSION: %s=%.4f below minimum=%.4f", name, *rate, minimum)}
	}
	return RateResult{Outcome: Pass, Message: fmt.Sprintf("%s=%.4f meets minimum=%.4f", name, *rate, minimum)}
}
