//go:build !unix

package network

import "syscall"

// reuseAddrControl is a no-op where SO_REUSEADDR is unavailable.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
