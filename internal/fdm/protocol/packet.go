// Package protocol implements the SITL JSON interface wire formats: the
// fixed-size binary servo packet received from the flight controller and the
// newline-wrapped JSON state frame sent back to it.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Servo packet layout constants. The packet is little-endian and has no
// variable-length fields, so any datagram of a different size is rejected
// outright rather than scanned for a partial frame.
const (
	// Magic is the sentinel value leading every valid servo packet.
	Magic uint16 = 18458

	// ServoChannels is the number of PWM slots carried per packet.
	ServoChannels = 16

	// PacketSize is the exact datagram size in bytes:
	// magic:u16 + frame_rate:u16 + frame_count:u32 + pwm[16]:u16.
	PacketSize = 2 + 2 + 4 + 2*ServoChannels

	// MaxRangeSensors is the number of rng_N slots the state frame supports.
	MaxRangeSensors = 10
)

var (
	// ErrMalformedFrame reports a datagram whose length does not match the
	// fixed servo packet size.
	ErrMalformedFrame = errors.New("malformed servo frame")

	// ErrBadMagic reports a correctly sized datagram whose leading magic
	// field does not match the protocol sentinel.
	ErrBadMagic = errors.New("bad protocol magic")
)

// ServoPacket is one servo command frame from the flight controller.
type ServoPacket struct {
	Magic      uint16
	FrameRate  uint16
	FrameCount uint32
	PWM        [ServoChannels]uint16
}

// DecodeServoPacket parses a received datagram into a ServoPacket. It returns
// ErrMalformedFrame for any length other than PacketSize and ErrBadMagic when
// the magic field is wrong; other field values are never inspected here.
func DecodeServoPacket(b []byte) (*ServoPacket, error) {
	if len(b) != PacketSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedFrame, len(b), PacketSize)
	}
	pkt := &ServoPacket{
		Magic:      binary.LittleEndian.Uint16(b[0:2]),
		FrameRate:  binary.LittleEndian.Uint16(b[2:4]),
		FrameCount: binary.LittleEndian.Uint32(b[4:8]),
	}
	if pkt.Magic != Magic {
		return nil, fmt.Errorf("%w: %d, want %d", ErrBadMagic, pkt.Magic, Magic)
	}
	for i := range pkt.PWM {
		pkt.PWM[i] = binary.LittleEndian.Uint16(b[8+2*i : 10+2*i])
	}
	return pkt, nil
}

// EncodeServoPacket serialises a ServoPacket into its wire form. The bridge
// itself never sends servo packets; this is used by tests and replay tooling.
func EncodeServoPacket(pkt *ServoPacket) []byte {
	b := make([]byte, PacketSize)
	binary.LittleEndian.PutUint16(b[0:2], pkt.Magic)
	binary.LittleEndian.PutUint16(b[2:4], pkt.FrameRate)
	binary.LittleEndian.PutUint32(b[4:8], pkt.FrameCount)
	for i, pwm := range pkt.PWM {
		binary.LittleEndian.PutUint16(b[8+2*i:10+2*i], pwm)
	}
	return b
}
