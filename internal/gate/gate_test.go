package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestTimingGateNoSamples(t *testing.T) {
	res := TimingGate("load_p90", nil, 1000)
	assert.Equal(t, Error, res.Outcome)
}

func TestTimingGatePass(t *testing.T) {
	res := TimingGate("load_p90", f(500), 1000)
	assert.Equal(t, Pass, res.Outcome)
}

func TestTimingGateFail(t *testing.T) {
	res := TimingGate("load_p90", f(1500), 1000)
	assert.Equal(t, Fail, res.Outcome)
}

func TestTimingGateBoundaryIsPass(t *testing.T) {
	// exactly at threshold is not "exceeds" it.
	res := TimingGate("load_p90", f(1000), 1000)
	assert.Equal(t, Pass, res.Outcome)
}

func TestRateGateNoSamples(t *testing.T) {
	res := RateGate("open_rate", nil, 0.99)
	assert.Equal(t, Error, res.Outcome)
}

func TestRateGatePass(t *testing.T) {
	res := RateGate("open_rate", f(0.995), 0.99)
	assert.Equal(t, Pass, res.Outcome)
}

func TestRateGateFail(t *testing.T) {
	res := RateGate("open_rate", f(0.5), 0.99)
	assert.Equal(t, Fail, res.Outcome)
}

func TestRateGateBoundaryIsPass(t *testing.T) {
	res := RateGate("open_rate", f(0.99), 0.99)
	assert.Equal(t, Pass, res.Outcome)
}
