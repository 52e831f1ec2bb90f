package protocol

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildServoBytes constructs a raw datagram with the given header fields and
// a recognisable PWM ramp.
func buildServoBytes(magic, frameRate uint16, frameCount uint32) []byte {
	b := make([]byte, PacketSize)
	binary.LittleEndian.PutUint16(b[0:2], magic)
	binary.LittleEndian.PutUint16(b[2:4], frameRate)
	binary.LittleEndian.PutUint32(b[4:8], frameCount)
	for i := 0; i < ServoChannels; i++ {
		binary.LittleEndian.PutUint16(b[8+2*i:], uint16(1000+i))
	}
	return b
}

func TestDecodeServoPacket(t *testing.T) {
	pkt, err := DecodeServoPacket(buildServoBytes(Magic, 400, 7))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if pkt.Magic != Magic {
		t.Errorf("magic = %d, want %d", pkt.Magic, Magic)
	}
	if pkt.FrameRate != 400 {
		t.Errorf("frame rate = %d, want 400", pkt.FrameRate)
	}
	if pkt.FrameCount != 7 {
		t.Errorf("frame count = %d, want 7", pkt.FrameCount)
	}
	for i, pwm := range pkt.PWM {
		if want := uint16(1000 + i); pwm != want {
			t.Errorf("pwm[%d] = %d, want %d", i, pwm, want)
		}
	}
}

// TestDecodeServoPacket_WrongLength checks that any length other than the
// fixed frame size is rejected outright, never partially accepted.
func TestDecodeServoPacket_WrongLength(t *testing.T) {
	for _, size := range []int{0, 1, PacketSize - 1, PacketSize + 1, 2 * PacketSize, 1500} {
		_, err := DecodeServoPacket(make([]byte, size))
		if !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("size %d: got %v, want ErrMalformedFrame", size, err)
		}
	}
}

// TestDecodeServoPacket_BadMagic checks that a wrong magic is rejected
// regardless of the other field values.
func TestDecodeServoPacket_BadMagic(t *testing.T) {
	for _, magic := range []uint16{0, 1, Magic - 1, Magic + 1, 0xFFFF} {
		_, err := DecodeServoPacket(buildServoBytes(magic, 400, 1))
		if !errors.Is(err, ErrBadMagic) {
			t.Errorf("magic %d: got %v, want ErrBadMagic", magic, err)
		}
	}
}

func TestServoPacketRoundTrip(t *testing.T) {
	in := &ServoPacket{Magic: Magic, FrameRate: 1000, FrameCount: 12345678}
	for i := range in.PWM {
		in.PWM[i] = uint16(2000 - i*10)
	}
	out, err := DecodeServoPacket(EncodeServoPacket(in))
	if err != nil {
		t.Fatalf("round trip decode failed: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
