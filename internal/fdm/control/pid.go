package control

import "math"

// PID is a discrete PID controller matching the simulator convention the
// bridge was tuned against: rectangular integration of the raw error, an
// integral term clamped to [IMin, IMax] with back-calculation of the
// integrator, and a negated output (-P - I - D) clamped to [CmdMin, CmdMax]
// when CmdMax > CmdMin.
//
// The negated output means callers feed the error as (measured - target) and
// receive a command pushing the measurement toward the target. Given the same
// gains, error sequence, dt and prior integrator state, Update is
// bit-for-bit reproducible.
type PID struct {
	PGain, IGain, DGain float64
	IMax, IMin          float64
	CmdMax, CmdMin      float64

	errLast float64
	iErr    float64
	cmd     float64
}

// NewPID returns a PID controller with the given gains and limits and a
// zeroed integrator.
func NewPID(p, i, d, iMax, iMin, cmdMax, cmdMin float64) PID {
	return PID{
		PGain: p, IGain: i, DGain: d,
		IMax: iMax, IMin: iMin,
		CmdMax: cmdMax, CmdMin: cmdMin,
	}
}

// Update advances the controller by dt seconds with the given error and
// returns the new command. Non-positive dt or a non-finite error yields 0
// without disturbing controller state.
func (p *PID) Update(err, dt float64) float64 {
	if dt <= 0 || math.IsNaN(err) || math.IsInf(err, 0) {
		return 0
	}

	pTerm := p.PGain * err

	p.iErr += dt * err
	iTerm := p.IGain * p.iErr
	if iTerm > p.IMax {
		iTerm = p.IMax
		if p.IGain != 0 {
			p.iErr = iTerm / p.IGain
		}
	} else if iTerm < p.IMin {
		iTerm = p.IMin
		if p.IGain != 0 {
			p.iErr = iTerm / p.IGain
		}
	}

	dTerm := p.DGain * (err - p.errLast) / dt
	p.errLast = err

	p.cmd = -pTerm - iTerm - dTerm
	if p.CmdMax > p.CmdMin {
		if p.cmd > p.CmdMax {
			p.cmd = p.CmdMax
		} else if p.cmd < p.CmdMin {
			p.cmd = p.CmdMin
		}
	}
	return p.cmd
}

// Reset clears the integrator, last error and command. The bridge does not
// call this on connection loss; see Control.Reset.
func (p *PID) Reset() {
	p.errLast = 0
	p.iErr = 0
	p.cmd = 0
}

// Integrator exposes the accumulated integral error for inspection in tests.
func (p *PID) Integrator() float64 { return p.iErr }
