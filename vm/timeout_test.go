package vm

import (
	"testing"
	"time"

	"github.com/kstephano/kayvm/asm"
	"github.com/stretchr/testify/require"
)

// TestTimeoutLiveness builds a long-running backward loop and verifies
// that a short timeout is observed within a bounded multiple of the
// sampling interval, per spec.md §8 "Timeout liveness".
func TestTimeoutLiveness(t *testing.T) {
	m := New()
	m.Registers.Set(0, 1) // always-true condition register

	b := asm.New()
	loopStart := b.CurrentPos()
	b.AddI64(1, 1, 1) // busywork
	b.JumpBackwardIfTrueTo(0, loopStart)
	program := b.Build()

	start := time.Now()
	err := m.EvalProgramWithTimeout(program, 10*time.Millisecond)
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Less(t, elapsed, 2*time.Second)
}
