// Package portalloc finds conflict-free TCP ports by bind-probing a
// configurable range, handing out batches atomically so concurrently
// running attempts never collide on an external port: try to bind with
// address reuse first, fall back to a short-timeout connect as a secondary
// guard, and scan the range in randomized order to avoid sympathetic
// collisions between concurrent allocators.
package portalloc

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"
)

// ErrNoFreePorts is returned when an entire range has been scanned without
// finding enough free ports.
type ErrNoFreePorts struct {
	Requested int
	Found     int
	RangeLow  int
	RangeHigh int
}

func (e *ErrNoFreePorts) Error() string {
	return fmt.Sprintf("no free ports: found %d/%d in range [%d,%d]", e.Found, e.Requested, e.RangeLow, e.RangeHigh)
}

// Allocator draws TCP ports from a fixed range.
type Allocator struct {
	low  int
	high int
	rng  *rand.Rand
}

// New creates an Allocator over the inclusive range [low, high].
func New(low, high int) *Allocator {
	if high < low {
		low, high = high, low
	}
	return &Allocator{
		low:  low,
		high: high,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// isPortInUse probes a single port: bind-with-reuse first (authoritative),
// then a short-timeout connect as a secondary guard against anything the
// bind probe might have missed (e.g. a listener bound to a specific
// interface rather than all interfaces).
func isPortInUse(port int) bool {
	addr := fmt.Sprintf(":%d", port)

	lc := net.ListenConfig{
		Control: reuseAddrControl,
	}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return true
	}
	ln.Close()

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 200*time.Millisecond)
	if err == nil {
		conn.Close()
		return true
	}

	return false
}

// shuffledRange returns the integers in [low, high] in randomized order.
func (a *Allocator) shuffledRange() []int {
	n := a.high - a.low + 1
	ports := make([]int, n)
	for i := range ports {
		ports[i] = a.low + i
	}
	a.rng.Shuffle(n, func(i, j int) { ports[i], ports[j] = ports[j], ports[i] })
	return ports
}

// AllocateOne returns a single free port.
func (a *Allocator) AllocateOne() (int, error) {
	for _, port := range a.shuffledRange() {
		if !isPortInUse(port) {
			return port, nil
		}
	}
	return 0, &ErrNoFreePorts{Requested: 1, Found: 0, RangeLow: a.low, RangeHigh: a.high}
}

// AllocateBatch reserves n ports atomically: it holds each candidate port
// open (listening) until all n are secured, then releases them immediately
// before returning. This is a best-effort reservation — callers must handle
// the race where another process binds between release and use by falling
// back to a fresh allocation.
func (a *Allocator) AllocateBatch(n int) ([]int, error) {
	if n <= 0 {
		return nil, nil
	}

	held := make([]net.Listener, 0, n)
	defer func() {
		for _, ln := range held {
			ln.Close()
		}
	}()

	for _, port := range a.shuffledRange() {
		if len(held) == n {
			break
		}

		lc := net.ListenConfig{Control: reuseAddrControl}
		ln, err := lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			continue
		}

		conn, dialErr := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 200*time.Millisecond)
		if dialErr == nil {
			conn.Close()
			ln.Close()
			continue
		}

		held = append(held, ln)
	}

	if len(held) < n {
		return nil, &ErrNoFreePorts{Requested: n, Found: len(held), RangeLow: a.low, RangeHigh: a.high}
	}

	ports := make([]int, 0, n)
	for _, ln := range held {
		ports = append(ports, ln.Addr().(*net.TCPAddr).Port)
	}
	return ports, nil
}
