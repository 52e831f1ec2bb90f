package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helios-sim/fdm.bridge/internal/fdm/control"
	"github.com/helios-sim/fdm.bridge/internal/monitoring"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBridgeConfigDefaults(t *testing.T) {
	cfg, err := LoadBridgeConfig(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.GetFDMAddr())
	assert.Equal(t, 9002, cfg.GetFDMPortIn())
	assert.Equal(t, 10, cfg.GetTimeoutMaxCount())
	assert.Equal(t, 0, cfg.GetRangeSensorCount())

	// Default NED offset is the 180 degree roll.
	ned := cfg.GetNEDOffset()
	assert.InDelta(t, 0, ned.Rot.Real, 1e-12)
	assert.InDelta(t, 1, ned.Rot.Imag, 1e-12)
}

func TestLoadBridgeConfigFull(t *testing.T) {
	cfg, err := LoadBridgeConfig(writeConfig(t, `{
		"fdm_addr": "0.0.0.0",
		"fdm_port_in": 9012,
		"connection_timeout_max_count": 5,
		"online_recv_wait_millis": 20,
		"range_sensor_count": 2,
		"controls": [
			{
				"channel": 2,
				"type": "VELOCITY",
				"joint": "rotor_0",
				"multiplier": 838,
				"offset": -0.5,
				"p": 0.2,
				"rotor_velocity_slowdown_sim": 10
			}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.GetFDMAddr())
	assert.Equal(t, 9012, cfg.GetFDMPortIn())
	assert.Equal(t, 5, cfg.GetTimeoutMaxCount())
	assert.Equal(t, 2, cfg.GetRangeSensorCount())
	assert.Equal(t, int64(20), cfg.GetOnlineRecvWait().Milliseconds())
	require.Len(t, cfg.Controls, 1)
}

func TestLoadBridgeConfigRejectsBadExtension(t *testing.T) {
	_, err := LoadBridgeConfig("bridge.yaml")
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"channel too high", `{"controls":[{"channel":16,"type":"VELOCITY","joint":"j"}]}`},
		{"negative channel", `{"controls":[{"channel":-1,"type":"VELOCITY","joint":"j"}]}`},
		{"unknown type", `{"controls":[{"channel":0,"type":"TORQUE","joint":"j"}]}`},
		{"inverted servo range", `{"controls":[{"channel":0,"type":"EFFORT","joint":"j","servo_min":2000,"servo_max":1000}]}`},
		{"equal servo bounds", `{"controls":[{"channel":0,"type":"EFFORT","joint":"j","servo_min":1500,"servo_max":1500}]}`},
		{"too many range sensors", `{"range_sensor_count":11}`},
		{"bad port", `{"fdm_port_in":70000}`},
		{"mqtt without broker", `{"mqtt":{}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadBridgeConfig(writeConfig(t, tc.json))
			assert.Error(t, err)
		})
	}
}

func TestBuildControlsDefaults(t *testing.T) {
	cfg, err := LoadBridgeConfig(writeConfig(t, `{
		"controls": [{"channel": 3, "type": "position", "joint": "elevator"}]
	}`))
	require.NoError(t, err)

	controls := cfg.BuildControls(func(name string) (control.Joint, bool) {
		assert.Equal(t, "elevator", name)
		return nil, false
	})
	require.Len(t, controls, 1)

	c := controls[0]
	assert.Equal(t, 3, c.Channel)
	assert.Equal(t, control.Position, c.Kind)
	assert.True(t, c.UseForce)
	assert.Equal(t, 1.0, c.Multiplier)
	assert.Equal(t, 1000.0, c.ServoMin)
	assert.Equal(t, 2000.0, c.ServoMax)
	assert.Equal(t, 1.0, c.Slowdown)
	// Unresolvable joint leaves the channel built but not actuating.
	assert.Nil(t, c.Joint)
}

// A configured slowdown of exactly 0 is coerced to 1 with a warning rather
// than poisoning every velocity target with a division by zero.
func TestBuildControlsCoercesZeroSlowdown(t *testing.T) {
	cfg, err := LoadBridgeConfig(writeConfig(t, `{
		"controls": [{"channel": 0, "type": "VELOCITY", "joint": "rotor",
			"rotor_velocity_slowdown_sim": 0}]
	}`))
	require.NoError(t, err)

	var warned bool
	original := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) { warned = true })
	t.Cleanup(func() { monitoring.SetLogger(original) })

	controls := cfg.BuildControls(nil)
	require.Len(t, controls, 1)
	assert.Equal(t, 1.0, controls[0].Slowdown)
	assert.True(t, warned)
}
