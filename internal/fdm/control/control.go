// Package control models one commanded degree of freedom: mapping a raw PWM
// value into a normalized command and applying that command to an externally
// owned joint as a velocity, position or effort target.
package control

import (
	"fmt"
	"strings"
)

// Kind selects how a channel's command drives its joint.
type Kind int

const (
	// Velocity commands a joint velocity, via PID force or directly.
	Velocity Kind = iota
	// Position commands a joint position, via PID force or directly.
	Position
	// Effort applies the command directly as a force or torque.
	Effort
)

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(s) {
	case "VELOCITY":
		return Velocity, nil
	case "POSITION":
		return Position, nil
	case "EFFORT":
		return Effort, nil
	}
	return 0, fmt.Errorf("unknown controller type %q", s)
}

func (k Kind) String() string {
	switch k {
	case Velocity:
		return "VELOCITY"
	case Position:
		return "POSITION"
	case Effort:
		return "EFFORT"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Joint is the externally owned actuated degree of freedom a channel drives.
// Implementations belong to the host simulator.
type Joint interface {
	Position() float64
	Velocity() float64
	SetForce(f float64)
	SetVelocity(v float64)
	SetPosition(p float64)
}

// Control holds the per-channel command state and limits. Channels are built
// once at configuration time and mutated every tick by the bridge.
type Control struct {
	// Channel is the PWM slot (0-15) this control reads from inbound packets.
	Channel int

	Kind     Kind
	UseForce bool

	Multiplier float64
	Offset     float64
	ServoMin   float64
	ServoMax   float64

	// Slowdown divides velocity targets to slow rotor spin in simulation.
	// Never zero: configuration coerces 0 to 1.
	Slowdown float64

	PID    PID
	Filter OnePole

	// Joint is nil when the configured joint could not be resolved, which
	// disables actuation for this channel without failing the session.
	Joint Joint

	cmd float64
}

// MapPWM converts a raw PWM value into this channel's pending command:
// pwm is normalized from [ServoMin, ServoMax] to [0, 1], saturating at the
// bounds, then scaled as Multiplier * (normalized + Offset).
func (c *Control) MapPWM(pwm uint16) {
	raw := (float64(pwm) - c.ServoMin) / (c.ServoMax - c.ServoMin)
	if raw < 0 {
		raw = 0
	} else if raw > 1 {
		raw = 1
	}
	c.cmd = c.Multiplier * (raw + c.Offset)
}

// Cmd returns the pending command value.
func (c *Control) Cmd() float64 { return c.cmd }

// SetCmd overrides the pending command. Used by tests and recovery paths.
func (c *Control) SetCmd(v float64) { c.cmd = v }

// Actuate applies the pending command to the joint for a tick of dt seconds.
// A channel with no resolved joint is a no-op.
func (c *Control) Actuate(dt float64) {
	if c.Joint == nil {
		return
	}
	if c.UseForce {
		switch c.Kind {
		case Velocity:
			velTarget := c.cmd / c.Slowdown
			err := c.Joint.Velocity() - velTarget
			c.Joint.SetForce(c.PID.Update(err, dt))
		case Position:
			err := c.Joint.Position() - c.cmd
			c.Joint.SetForce(c.PID.Update(err, dt))
		case Effort:
			c.Joint.SetForce(c.cmd)
		}
		return
	}
	switch c.Kind {
	case Velocity:
		c.Joint.SetVelocity(c.cmd)
	case Position:
		c.Joint.SetPosition(c.cmd)
	case Effort:
		c.Joint.SetForce(c.cmd)
	}
}

// Reset zeroes the pending command after a connection loss. The PID
// integrator is deliberately left untouched, matching the reference
// behaviour; only the command itself is cleared.
func (c *Control) Reset() {
	c.cmd = 0
}
