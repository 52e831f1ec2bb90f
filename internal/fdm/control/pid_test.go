package control

import (
	"math"
	"testing"
)

func TestPIDProportional(t *testing.T) {
	pid := NewPID(2, 0, 0, 0, 0, 100, -100)
	// Output is negated: positive error pushes the command negative.
	if got := pid.Update(1.5, 0.01); got != -3 {
		t.Errorf("Update = %v, want -3", got)
	}
	if got := pid.Update(-2, 0.01); got != 4 {
		t.Errorf("Update = %v, want 4", got)
	}
}

// Rectangular integration: the integral term accumulates dt*err each step
// and is clamped to [IMin, IMax] with the integrator back-calculated.
func TestPIDIntegral(t *testing.T) {
	pid := NewPID(0, 1, 0, 10, -10, 100, -100)

	if got := pid.Update(2, 0.5); got != -1 {
		t.Errorf("first Update = %v, want -1", got)
	}
	if got := pid.Update(2, 0.5); got != -2 {
		t.Errorf("second Update = %v, want -2", got)
	}

	// Drive the integral into its clamp.
	for i := 0; i < 100; i++ {
		pid.Update(2, 0.5)
	}
	if got := pid.Update(2, 0.5); got != -10 {
		t.Errorf("clamped Update = %v, want -10", got)
	}
	if got := pid.Integrator(); got != 10 {
		t.Errorf("integrator = %v, want back-calculated 10", got)
	}
}

func TestPIDDerivative(t *testing.T) {
	pid := NewPID(0, 0, 1, 0, 0, 100, -100)
	pid.Update(1, 0.1) // errLast was 0: d = (1-0)/0.1 = 10
	if got := pid.Update(3, 0.1); got != -20 {
		t.Errorf("Update = %v, want -20", got)
	}
}

func TestPIDOutputClamp(t *testing.T) {
	pid := NewPID(10, 0, 0, 0, 0, 1, -1)
	if got := pid.Update(5, 0.01); got != -1 {
		t.Errorf("Update = %v, want clamp at -1", got)
	}
	if got := pid.Update(-5, 0.01); got != 1 {
		t.Errorf("Update = %v, want clamp at 1", got)
	}

	// CmdMax <= CmdMin disables clamping.
	free := NewPID(10, 0, 0, 0, 0, 0, 0)
	if got := free.Update(5, 0.01); got != -50 {
		t.Errorf("unclamped Update = %v, want -50", got)
	}
}

func TestPIDDegenerateInputs(t *testing.T) {
	pid := NewPID(1, 1, 1, 10, -10, 10, -10)
	for _, tc := range []struct {
		name string
		err  float64
		dt   float64
	}{
		{"zero dt", 1, 0},
		{"negative dt", 1, -0.1},
		{"nan error", math.NaN(), 0.1},
		{"inf error", math.Inf(1), 0.1},
	} {
		if got := pid.Update(tc.err, tc.dt); got != 0 {
			t.Errorf("%s: Update = %v, want 0", tc.name, got)
		}
	}
	if got := pid.Integrator(); got != 0 {
		t.Errorf("integrator disturbed by degenerate inputs: %v", got)
	}
}

// Two controllers fed the same sequence must agree bit for bit.
func TestPIDReproducible(t *testing.T) {
	a := NewPID(0.3, 0.07, 0.011, 2, -2, 5, -5)
	b := NewPID(0.3, 0.07, 0.011, 2, -2, 5, -5)
	errs := []float64{0.5, -0.25, 1.75, 0.125, -3, 0.0625}
	for i, e := range errs {
		ga, gb := a.Update(e, 0.004), b.Update(e, 0.004)
		if ga != gb {
			t.Fatalf("step %d: %v != %v", i, ga, gb)
		}
	}
}
