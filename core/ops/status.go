package ops

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

var startTime = time.Now()

// StatusOp reports uptime, Go version, goroutine count and update mode.
type StatusOp struct {
	Mode func() string
}

func (s *StatusOp) Name() string        { return "status" }
func (s *StatusOp) Description() string { return "Show bot status" }

func (s *StatusOp) Execute(_ context.Context, _ string) (string, error) {
	mode := "unknown"
	if s.Mode != nil {
		mode = s.Mode()
	}
	uptime := time.Since(startTime).Truncate(time.Second)
	return fmt.Sprintf("Status: OK\nMode: %s\nUptime: %s\nGo: %s\nGoroutines: %d",
		mode, uptime, runtime.Version(), runtime.NumGoroutine()), nil
}
