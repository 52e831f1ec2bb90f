package protocol

import "strconv"

// StateFrame is one outbound telemetry sample: IMU readings in the body
// frame, pose and velocity in NED, and one range reading per configured
// rangefinder slot. Slots with no reading hold -1.
type StateFrame struct {
	Timestamp  float64
	Gyro       [3]float64 // body-frame angular velocity, rad/s
	AccelBody  [3]float64 // body-frame linear acceleration, m/s^2
	Position   [3]float64 // NED position, m
	Quaternion [4]float64 // NED-to-body rotation, scalar first
	Velocity   [3]float64 // NED velocity, m/s
	Ranges     []float64  // rng_1..rng_N in slot order
}

// EncodeStateFrame serialises a StateFrame as the JSON object the SITL JSON
// interface expects, wrapped in a single leading and trailing newline. A
// rng_N key is emitted for every configured slot from 1 to len(Ranges), so
// the flight controller always sees a dense index range. Encoding never
// fails for finite inputs.
func EncodeStateFrame(f *StateFrame) []byte {
	b := make([]byte, 0, 256)
	b = append(b, '\n', '{')
	b = appendKey(b, "timestamp")
	b = appendFloat(b, f.Timestamp)

	b = append(b, ',')
	b = appendKey(b, "imu")
	b = append(b, '{')
	b = appendKey(b, "gyro")
	b = appendFloatArray(b, f.Gyro[:])
	b = append(b, ',')
	b = appendKey(b, "accel_body")
	b = appendFloatArray(b, f.AccelBody[:])
	b = append(b, '}')

	b = append(b, ',')
	b = appendKey(b, "position")
	b = appendFloatArray(b, f.Position[:])

	b = append(b, ',')
	b = appendKey(b, "quaternion")
	b = appendFloatArray(b, f.Quaternion[:])

	b = append(b, ',')
	b = appendKey(b, "velocity")
	b = appendFloatArray(b, f.Velocity[:])

	for i, rng := range f.Ranges {
		if i >= MaxRangeSensors {
			break
		}
		b = append(b, ',')
		b = appendKey(b, "rng_"+strconv.Itoa(i+1))
		b = appendFloat(b, rng)
	}

	b = append(b, '}', '\n')
	return b
}

func appendKey(b []byte, key string) []byte {
	b = append(b, '"')
	b = append(b, key...)
	return append(b, '"', ':')
}

func appendFloat(b []byte, v float64) []byte {
	return strconv.AppendFloat(b, v, 'g', -1, 64)
}

func appendFloatArray(b []byte, vs []float64) []byte {
	b = append(b, '[')
	for i, v := range vs {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendFloat(b, v)
	}
	return append(b, ']')
}
