// Package config loads and validates the bridge configuration. The schema is
// JSON with pointer-typed optional fields, so partial configs are safe and
// every omitted value falls back to a protocol default via the Get accessors.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/helios-sim/fdm.bridge/internal/fdm/control"
	"github.com/helios-sim/fdm.bridge/internal/fdm/frame"
	"github.com/helios-sim/fdm.bridge/internal/fdm/protocol"
	"github.com/helios-sim/fdm.bridge/internal/monitoring"
)

// Defaults applied when the corresponding fields are omitted.
const (
	DefaultFDMAddr            = "127.0.0.1"
	DefaultFDMPortIn          = 9002
	DefaultTimeoutMaxCount    = 10
	DefaultOnlineRecvWaitMs   = 10
	DefaultServoMin           = 1000.0
	DefaultServoMax           = 2000.0
	DefaultSlowdown           = 1.0
	DefaultFrequencyCutoff    = 5.0
	DefaultSamplingRate       = 32.0
	DefaultFlightLogSamplePer = 0.5 // seconds between recorded state samples
)

// PoseConfig is a six-value x, y, z, roll, pitch, yaw pose entry, with the
// angles in radians.
type PoseConfig [6]float64

// Pose converts the entry into a frame.Pose.
func (p PoseConfig) Pose() frame.Pose {
	return frame.FromEuler(p[0], p[1], p[2], p[3], p[4], p[5])
}

// ControlConfig declares one actuator channel.
type ControlConfig struct {
	Channel int    `json:"channel"`
	Type    string `json:"type"`
	Joint   string `json:"joint"`

	UseForce   *bool    `json:"use_force,omitempty"`
	Multiplier *float64 `json:"multiplier,omitempty"`
	Offset     *float64 `json:"offset,omitempty"`
	ServoMin   *float64 `json:"servo_min,omitempty"`
	ServoMax   *float64 `json:"servo_max,omitempty"`

	P      *float64 `json:"p,omitempty"`
	I      *float64 `json:"i,omitempty"`
	D      *float64 `json:"d,omitempty"`
	IMax   *float64 `json:"i_max,omitempty"`
	IMin   *float64 `json:"i_min,omitempty"`
	CmdMax *float64 `json:"cmd_max,omitempty"`
	CmdMin *float64 `json:"cmd_min,omitempty"`

	RotorVelocitySlowdownSim *float64 `json:"rotor_velocity_slowdown_sim,omitempty"`
	FrequencyCutoff          *float64 `json:"frequency_cutoff,omitempty"`
	SamplingRate             *float64 `json:"sampling_rate,omitempty"`
}

// MQTTConfig configures the optional rangefinder subscription adapter.
type MQTTConfig struct {
	Broker      string  `json:"broker"`
	ClientID    *string `json:"client_id,omitempty"`
	TopicPrefix *string `json:"topic_prefix,omitempty"`
}

// BridgeConfig is the root configuration for one bridge instance.
type BridgeConfig struct {
	FDMAddr                   *string `json:"fdm_addr,omitempty"`
	FDMPortIn                 *int    `json:"fdm_port_in,omitempty"`
	ConnectionTimeoutMaxCount *int    `json:"connection_timeout_max_count,omitempty"`
	OnlineRecvWaitMillis      *int    `json:"online_recv_wait_millis,omitempty"`

	ModelXYZToAirplaneXForwardZDown *PoseConfig `json:"model_xyz_to_airplane_x_forward_z_down,omitempty"`
	WorldXYZToNED                   *PoseConfig `json:"world_xyz_to_ned,omitempty"`

	RangeSensorCount *int `json:"range_sensor_count,omitempty"`

	Controls []ControlConfig `json:"controls"`

	FlightLogPath *string     `json:"flight_log_path,omitempty"`
	MQTT          *MQTTConfig `json:"mqtt,omitempty"`
}

// LoadBridgeConfig loads a BridgeConfig from a JSON file. The path must have
// a .json extension and the file must be under 1MB.
func LoadBridgeConfig(path string) (*BridgeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &BridgeConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors that must be reported at
// configuration time rather than discovered mid-session.
func (c *BridgeConfig) Validate() error {
	if c.FDMPortIn != nil && (*c.FDMPortIn < 1 || *c.FDMPortIn > 65535) {
		return fmt.Errorf("fdm_port_in %d out of range", *c.FDMPortIn)
	}
	if c.ConnectionTimeoutMaxCount != nil && *c.ConnectionTimeoutMaxCount < 1 {
		return fmt.Errorf("connection_timeout_max_count must be positive, got %d", *c.ConnectionTimeoutMaxCount)
	}
	if c.RangeSensorCount != nil &&
		(*c.RangeSensorCount < 0 || *c.RangeSensorCount > protocol.MaxRangeSensors) {
		return fmt.Errorf("range_sensor_count %d out of range [0,%d]",
			*c.RangeSensorCount, protocol.MaxRangeSensors)
	}
	for i, cc := range c.Controls {
		if cc.Channel < 0 || cc.Channel >= protocol.ServoChannels {
			return fmt.Errorf("controls[%d]: channel %d out of range [0,%d)",
				i, cc.Channel, protocol.ServoChannels)
		}
		if _, err := control.ParseKind(cc.Type); err != nil {
			return fmt.Errorf("controls[%d]: %w", i, err)
		}
		servoMin := valOr(cc.ServoMin, DefaultServoMin)
		servoMax := valOr(cc.ServoMax, DefaultServoMax)
		if servoMin >= servoMax {
			return fmt.Errorf("controls[%d]: servo_min %v must be below servo_max %v",
				i, servoMin, servoMax)
		}
	}
	if c.MQTT != nil && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is configured")
	}
	return nil
}

// GetFDMAddr returns the bind address.
func (c *BridgeConfig) GetFDMAddr() string {
	if c.FDMAddr != nil {
		return *c.FDMAddr
	}
	return DefaultFDMAddr
}

// GetFDMPortIn returns the bind port.
func (c *BridgeConfig) GetFDMPortIn() int {
	if c.FDMPortIn != nil {
		return *c.FDMPortIn
	}
	return DefaultFDMPortIn
}

// GetTimeoutMaxCount returns the consecutive-timeout threshold.
func (c *BridgeConfig) GetTimeoutMaxCount() int {
	if c.ConnectionTimeoutMaxCount != nil {
		return *c.ConnectionTimeoutMaxCount
	}
	return DefaultTimeoutMaxCount
}

// GetOnlineRecvWait returns the bounded receive wait used once online.
func (c *BridgeConfig) GetOnlineRecvWait() time.Duration {
	ms := DefaultOnlineRecvWaitMs
	if c.OnlineRecvWaitMillis != nil {
		ms = *c.OnlineRecvWaitMillis
	}
	return time.Duration(ms) * time.Millisecond
}

// GetModelOffset returns the model-to-airframe offset pose.
func (c *BridgeConfig) GetModelOffset() frame.Pose {
	if c.ModelXYZToAirplaneXForwardZDown != nil {
		return c.ModelXYZToAirplaneXForwardZDown.Pose()
	}
	return frame.Identity()
}

// GetNEDOffset returns the world-to-NED offset pose.
func (c *BridgeConfig) GetNEDOffset() frame.Pose {
	if c.WorldXYZToNED != nil {
		return c.WorldXYZToNED.Pose()
	}
	return frame.DefaultNEDOffset()
}

// GetRangeSensorCount returns the number of rangefinder slots in use.
func (c *BridgeConfig) GetRangeSensorCount() int {
	if c.RangeSensorCount != nil {
		return *c.RangeSensorCount
	}
	return 0
}

// JointResolver maps a configured joint name to the host simulator's joint
// handle. Returning false disables the channel's actuation for the session.
type JointResolver func(name string) (control.Joint, bool)

// BuildControls constructs the actuator channels declared by the
// configuration. A channel whose joint cannot be resolved is kept with a nil
// joint (actuation disabled) and logged; it never fails the session.
func (c *BridgeConfig) BuildControls(resolve JointResolver) []*control.Control {
	controls := make([]*control.Control, 0, len(c.Controls))
	for i, cc := range c.Controls {
		kind, err := control.ParseKind(cc.Type)
		if err != nil {
			// Validate rejects unknown types; this is a defensive branch for
			// configs built in code.
			monitoring.Logf("controls[%d]: %v, channel skipped", i, err)
			continue
		}

		slowdown := valOr(cc.RotorVelocitySlowdownSim, DefaultSlowdown)
		if slowdown == 0 {
			monitoring.Logf("controls[%d]: rotor_velocity_slowdown_sim is 0, using 1", i)
			slowdown = 1
		}

		ctl := &control.Control{
			Channel:    cc.Channel,
			Kind:       kind,
			UseForce:   boolOr(cc.UseForce, true),
			Multiplier: valOr(cc.Multiplier, 1),
			Offset:     valOr(cc.Offset, 0),
			ServoMin:   valOr(cc.ServoMin, DefaultServoMin),
			ServoMax:   valOr(cc.ServoMax, DefaultServoMax),
			Slowdown:   slowdown,
			PID: control.NewPID(
				valOr(cc.P, 0.1),
				valOr(cc.I, 0),
				valOr(cc.D, 0),
				valOr(cc.IMax, 0),
				valOr(cc.IMin, 0),
				valOr(cc.CmdMax, 1),
				valOr(cc.CmdMin, -1),
			),
			Filter: control.NewOnePole(
				valOr(cc.FrequencyCutoff, DefaultFrequencyCutoff),
				valOr(cc.SamplingRate, DefaultSamplingRate),
			),
		}

		if resolve != nil {
			if joint, ok := resolve(cc.Joint); ok {
				ctl.Joint = joint
			} else {
				monitoring.Logf("controls[%d]: joint %q not found, channel %d actuation disabled",
					i, cc.Joint, cc.Channel)
			}
		}
		controls = append(controls, ctl)
	}
	return controls
}

func valOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

func boolOr(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}
