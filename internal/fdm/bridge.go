// Package fdm implements the simulator-side half of the ArduPilot SITL JSON
// exchange: a bridge that, once per simulation tick, receives servo command
// packets, tracks controller liveness, drives externally owned joints, and
// returns a JSON state datagram to the auto-discovered controller endpoint.
package fdm

import (
	"errors"
	"net"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/helios-sim/fdm.bridge/internal/fdm/control"
	"github.com/helios-sim/fdm.bridge/internal/fdm/frame"
	"github.com/helios-sim/fdm.bridge/internal/fdm/network"
	"github.com/helios-sim/fdm.bridge/internal/fdm/protocol"
	"github.com/helios-sim/fdm.bridge/internal/monitoring"
)

// VehicleState supplies the physics readings serialised into each outbound
// state frame. Implementations belong to the host simulator and are read
// once per tick under the bridge lock.
type VehicleState interface {
	// AngularVelocity returns body-frame angular velocity in rad/s.
	AngularVelocity() r3.Vec
	// LinearAcceleration returns body-frame linear acceleration in m/s^2.
	LinearAcceleration() r3.Vec
	// WorldPose returns the vehicle pose in the simulator world frame.
	WorldPose() frame.Pose
	// WorldLinearVelocity returns world-frame linear velocity in m/s.
	WorldLinearVelocity() r3.Vec
}

// Recorder persists session events and state samples, typically to the
// flight log database. Implementations must not block the tick path.
type Recorder interface {
	RecordEvent(simTime float64, kind, detail string)
	RecordState(simTime float64, st *protocol.StateFrame)
}

// Config carries the already-validated bridge configuration. Build one from
// a config file via internal/config, or directly in tests.
type Config struct {
	// Controls are the configured actuator channels.
	Controls []*control.Control

	// ModelOffset aligns the simulator model frame with the x-forward
	// z-down airframe convention.
	ModelOffset frame.Pose

	// NEDOffset rotates the simulator world frame into NED.
	NEDOffset frame.Pose

	// TimeoutMaxCount is the consecutive-timeout threshold for declaring
	// the controller offline.
	TimeoutMaxCount int

	// OfflineRecvWait bounds the receive wait while no controller is
	// present; kept short to avoid stalling the simulation.
	OfflineRecvWait time.Duration

	// OnlineRecvWait bounds the receive wait once a controller is present,
	// long enough to ride out network jitter.
	OnlineRecvWait time.Duration

	// RangeCount is the number of rangefinder slots in use (0-10).
	RangeCount int

	// Recorder, when non-nil, receives session events and state samples.
	Recorder Recorder
}

// Bridge is one simulator-to-SITL session. All mutable state is owned by the
// Bridge and guarded by a single mutex held for the duration of one tick;
// SetRange shares the same mutex so sensor callbacks may race the tick loop
// safely.
type Bridge struct {
	mu sync.Mutex

	conn    *network.Conn
	vehicle VehicleState

	controls    []*control.Control
	session     *Session
	modelOffset frame.Pose
	nedOffset   frame.Pose

	offlineWait time.Duration
	onlineWait  time.Duration

	ranges   []float64
	recorder Recorder

	lastUpdateTime float64
	lastPacketTime float64

	recvBuf []byte
}

// Default receive wait budgets, matching the reference exchange: poll fast
// while nobody is talking to us, tolerate jitter once somebody is.
const (
	DefaultOfflineRecvWait = 1 * time.Millisecond
	DefaultOnlineRecvWait  = 10 * time.Millisecond
	DefaultTimeoutMaxCount = 10
)

// NoRangeReading is the sentinel for a rangefinder slot with no data yet.
const NoRangeReading = -1.0

// New assembles a bridge over an already bound connection. Range slots are
// initialised to NoRangeReading.
func New(cfg Config, conn *network.Conn, vehicle VehicleState) *Bridge {
	if cfg.TimeoutMaxCount <= 0 {
		cfg.TimeoutMaxCount = DefaultTimeoutMaxCount
	}
	if cfg.OfflineRecvWait <= 0 {
		cfg.OfflineRecvWait = DefaultOfflineRecvWait
	}
	if cfg.OnlineRecvWait <= 0 {
		cfg.OnlineRecvWait = DefaultOnlineRecvWait
	}
	ranges := make([]float64, cfg.RangeCount)
	for i := range ranges {
		ranges[i] = NoRangeReading
	}
	return &Bridge{
		conn:        conn,
		vehicle:     vehicle,
		controls:    cfg.Controls,
		session:     NewSession(cfg.TimeoutMaxCount),
		modelOffset: cfg.ModelOffset,
		nedOffset:   cfg.NEDOffset,
		offlineWait: cfg.OfflineRecvWait,
		onlineWait:  cfg.OnlineRecvWait,
		ranges:      ranges,
		recorder:    cfg.Recorder,
		recvBuf:     make([]byte, protocol.PacketSize+1),
	}
}

// Session exposes the session tracker for inspection in tests.
func (b *Bridge) Session() *Session { return b.session }

// SetRange records a rangefinder reading for a zero-based slot index.
// Sensor-subscription collaborators call this asynchronously; it takes the
// bridge lock, so updates never interleave with tick processing.
func (b *Bridge) SetRange(index int, value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.ranges) {
		monitoring.Logf("range reading for unconfigured slot %d dropped", index)
		return
	}
	b.ranges[index] = value
}

// Update runs one bridge tick at the given simulation time in seconds. It is
// driven synchronously by the host once per physics step: receive and
// validate at most one servo frame, and while the controller is online,
// actuate the joints and send a state frame back.
func (b *Bridge) Update(simTime float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dt := simTime - b.lastUpdateTime
	b.lastUpdateTime = simTime
	if dt <= 0 {
		return
	}

	if b.receiveServoPacket(simTime) {
		b.lastPacketTime = simTime
	}

	if b.session.Online {
		for _, c := range b.controls {
			c.Actuate(dt)
		}
		b.sendState(simTime)
	}
}

// receiveServoPacket performs the bounded receive, framing checks and
// PWM-to-command mapping for one tick. It returns true when a frame was
// accepted and fed to the actuator model.
func (b *Bridge) receiveServoPacket(simTime float64) bool {
	wait := b.offlineWait
	if b.session.Online {
		wait = b.onlineWait
	}

	n, addr, drained, err := b.conn.RecvLatest(b.recvBuf, wait)
	if drained > 0 {
		monitoring.Logf("drained %d backed-up servo packets", drained)
	}
	if err != nil {
		if !network.IsTimeout(err) && !errors.Is(err, net.ErrClosed) {
			monitoring.Logf("servo packet receive failed: %v", err)
		}
		if b.session.ObserveTimeout() {
			monitoring.Logf("lost connection to flight controller, resetting motor control")
			for _, c := range b.controls {
				c.Reset()
			}
			b.recordEvent(simTime, "offline", "connection timeout")
		}
		return false
	}

	pkt, err := protocol.DecodeServoPacket(b.recvBuf[:n])
	if err != nil {
		// Malformed traffic is dropped, not fatal; the tick proceeds with
		// the previous command state.
		monitoring.Logf("dropping servo frame from %v: %v", addr, err)
		return false
	}

	d := b.session.ObserveFrame(pkt, addr)
	if d.Restarted {
		monitoring.Logf("flight controller frame counter moved backwards, controller restart assumed")
		b.recordEvent(simTime, "restart", "frame counter reset")
	}
	if d.Duplicate {
		monitoring.Logf("duplicate servo frame %d dropped", pkt.FrameCount)
		return false
	}
	if d.Missed > 0 {
		monitoring.Logf("missed %d servo frames", d.Missed)
	}
	if d.WentOnline {
		monitoring.Logf("connected to flight controller @ %v", addr)
		b.recordEvent(simTime, "online", addr.String())
	}

	for _, c := range b.controls {
		if c.Channel >= 0 && c.Channel < protocol.ServoChannels {
			c.MapPWM(pkt.PWM[c.Channel])
		}
	}
	return true
}

// sendState builds the current state frame and sends it, best effort, to the
// last accepted controller endpoint.
func (b *Bridge) sendState(simTime float64) {
	st := b.buildState(simTime)
	if _, err := b.conn.SendTo(protocol.EncodeStateFrame(st), b.session.Peer); err != nil {
		monitoring.Logf("state frame send failed: %v", err)
	}
	if b.recorder != nil {
		b.recorder.RecordState(simTime, st)
	}
}

func (b *Bridge) buildState(simTime float64) *protocol.StateFrame {
	gyro := b.vehicle.AngularVelocity()
	accel := b.vehicle.LinearAcceleration()
	pose := frame.WorldToNEDBody(b.vehicle.WorldPose(), b.modelOffset, b.nedOffset)
	vel := frame.WorldVelocityToNED(b.vehicle.WorldLinearVelocity(), b.nedOffset)

	st := &protocol.StateFrame{
		Timestamp:  simTime,
		Gyro:       [3]float64{gyro.X, gyro.Y, gyro.Z},
		AccelBody:  [3]float64{accel.X, accel.Y, accel.Z},
		Position:   [3]float64{pose.Pos.X, pose.Pos.Y, pose.Pos.Z},
		Quaternion: [4]float64{pose.Rot.Real, pose.Rot.Imag, pose.Rot.Jmag, pose.Rot.Kmag},
		Velocity:   [3]float64{vel.X, vel.Y, vel.Z},
		Ranges:     make([]float64, len(b.ranges)),
	}
	copy(st.Ranges, b.ranges)
	return st
}

func (b *Bridge) recordEvent(simTime float64, kind, detail string) {
	if b.recorder != nil {
		b.recorder.RecordEvent(simTime, kind, detail)
	}
}

// Close tears the bridge down by releasing its transport. Sensor callbacks
// still in flight remain safe: they only touch state under the bridge lock.
func (b *Bridge) Close() error {
	return b.conn.Close()
}
