package fdm

import (
	"net"

	"github.com/helios-sim/fdm.bridge/internal/fdm/protocol"
)

// Session tracks the presence of the flight controller and the continuity of
// its servo frame stream. It starts Offline and is driven by every receive
// attempt: valid frames prove liveness, consecutive receive timeouts while
// Online eventually force the session Offline again.
type Session struct {
	// Online is true while the flight controller is considered present.
	Online bool

	// TimeoutMaxCount is how many consecutive receive timeouts are tolerated
	// while Online before the session is declared Offline.
	TimeoutMaxCount int

	// FrameRate is the rate advertised by the most recent magic-valid frame.
	FrameRate uint16

	// FrameCount is the counter of the last accepted frame.
	FrameCount uint32

	// Peer is the source address of the most recently accepted frame, used
	// as the destination for outbound state. Auto-discovered, never
	// statically configured.
	Peer *net.UDPAddr

	timeoutCount int
	seen         bool
}

// NewSession returns an Offline session with the given timeout threshold.
func NewSession(timeoutMaxCount int) *Session {
	return &Session{TimeoutMaxCount: timeoutMaxCount}
}

// TimeoutCount exposes the consecutive-timeout counter for tests.
func (s *Session) TimeoutCount() int { return s.timeoutCount }

// ObserveTimeout records one receive timeout. While Offline it is a no-op
// (the bridge polls fast and silently while no controller exists). While
// Online it increments the timeout counter; crossing the threshold resets
// the counter, transitions Offline, and returns true so the caller can zero
// pending actuator commands.
func (s *Session) ObserveTimeout() (wentOffline bool) {
	if !s.Online {
		return false
	}
	s.timeoutCount++
	if s.timeoutCount > s.TimeoutMaxCount {
		s.timeoutCount = 0
		s.Online = false
		return true
	}
	return false
}

// FrameDisposition reports how ObserveFrame classified a frame.
type FrameDisposition struct {
	// Accepted is true when the frame should feed the actuator model.
	Accepted bool
	// Duplicate is true when the frame repeats the last accepted counter.
	Duplicate bool
	// Restarted is true when the counter moved backwards, indicating the
	// flight controller restarted; the frame is still accepted.
	Restarted bool
	// Missed is the number of frames skipped since the last accepted one.
	// Only reported while Online; gaps straddling a reconnect stay silent.
	Missed uint32
	// WentOnline is true when this frame transitioned the session Online.
	WentOnline bool
}

// ObserveFrame records one magic-valid frame from addr and decides whether
// to accept it. Any valid frame proves liveness and clears the timeout
// counter, including duplicates that are otherwise rejected.
func (s *Session) ObserveFrame(pkt *protocol.ServoPacket, addr *net.UDPAddr) FrameDisposition {
	var d FrameDisposition
	s.FrameRate = pkt.FrameRate
	s.timeoutCount = 0

	switch {
	case !s.seen:
		// First frame ever: any counter value is the baseline.
		s.seen = true
	case pkt.FrameCount < s.FrameCount:
		// Counterpart restarted: accept the new baseline.
		d.Restarted = true
	case pkt.FrameCount == s.FrameCount:
		d.Duplicate = true
		return d
	case pkt.FrameCount != s.FrameCount+1 && s.Online:
		d.Missed = pkt.FrameCount - s.FrameCount - 1
	}
	s.FrameCount = pkt.FrameCount

	d.Accepted = true
	s.Peer = addr
	if !s.Online {
		s.Online = true
		d.WentOnline = true
	}
	return d
}
