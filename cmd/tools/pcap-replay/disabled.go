//go:build !pcap
// +build !pcap

// Replay requires libpcap; build with -tags pcap to enable it.
package main

import "log"

func main() {
	log.Fatal("pcap-replay was built without pcap support; rebuild with -tags pcap")
}
