package swift_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that no goroutine survives past the test package's
// run: queue.go parks RecvMsg waiters on a sync.Cond, and a socket that
// forgets to Release (or a queue that forgets to Close) leaves one
// blocked forever.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
