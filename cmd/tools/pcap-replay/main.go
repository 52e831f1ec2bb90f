//go:build pcap
// +build pcap

// Command pcap-replay replays captured ArduPilot SITL servo traffic against
// a running bridge, respecting the original packet timing. Useful for
// reproducing protocol issues offline from a Wireshark capture.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"github.com/helios-sim/fdm.bridge/internal/fdm/protocol"
)

var (
	pcapFile = flag.String("file", "", "PCAP file to replay (required)")
	udpPort  = flag.Int("port", 9002, "UDP port to filter on in the capture")
	target   = flag.String("target", "127.0.0.1:9002", "Bridge address to replay to")
	speed    = flag.Float64("speed", 1.0, "Replay speed multiplier")
	loose    = flag.Bool("loose", false, "Also replay payloads that fail servo packet validation")
)

func main() {
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("-file is required")
	}
	if *speed <= 0 {
		log.Fatalf("invalid speed multiplier %v", *speed)
	}

	raddr, err := net.ResolveUDPAddr("udp", *target)
	if err != nil {
		log.Fatalf("failed to resolve target %s: %v", *target, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		log.Fatalf("failed to dial %s: %v", *target, err)
	}
	defer conn.Close()

	handle, err := pcap.OpenOffline(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open PCAP file %s: %v", *pcapFile, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp dst port %d", *udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		log.Fatalf("failed to set BPF filter %q: %v", filter, err)
	}
	log.Printf("replaying %s to %s (filter %q, speed %.1fx)", *pcapFile, *target, filter, *speed)

	source := gopacket.NewPacketSource(handle, handle.LinkType())

	var sent, skipped int
	var firstCaptureTime time.Time
	replayStart := time.Now()

	for packet := range source.Packets() {
		transport := packet.TransportLayer()
		if transport == nil {
			continue
		}
		payload := transport.LayerPayload()

		if !*loose {
			if _, err := protocol.DecodeServoPacket(payload); err != nil {
				skipped++
				continue
			}
		}

		// Pace sends against the capture timestamps.
		captureTime := packet.Metadata().Timestamp
		if firstCaptureTime.IsZero() {
			firstCaptureTime = captureTime
		}
		offset := time.Duration(float64(captureTime.Sub(firstCaptureTime)) / *speed)
		if wait := time.Until(replayStart.Add(offset)); wait > 0 {
			time.Sleep(wait)
		}

		if _, err := conn.Write(payload); err != nil {
			log.Fatalf("send failed after %d packets: %v", sent, err)
		}
		sent++
	}

	log.Printf("replay complete: %d packets sent, %d skipped in %v",
		sent, skipped, time.Since(replayStart).Round(time.Millisecond))
}
