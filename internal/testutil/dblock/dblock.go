// Package dblock serializes test packages that share the local Postgres
// instance. Holding a TCP listener works across processes, which a sync.Mutex
// cannot do when packages run in parallel `go test` binaries.
package dblock

import (
	"net"
	"time"
)

const lockAddr = "127.0.0.1:45433"

func Acquire() func() {
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
