package core

import (
	"context"
	"log/slog"
	"os"
)

// AwaitTermination blocks until sig delivers a signal, then calls exit(0)
// straight away. In-flight requests are not drained.
func AwaitTermination(sig <-chan os.Signal, exit func(code int), logger *slog.Logger) {
	s := <-sig
	logger.Info("termination signal received, shutting down", "signal", s.String())
	exit(0)
}

// Run watches sig before starting the server, so a signal that arrives while
// webhook setup is still in flight exits at once. It blocks until exit has
// been called; with os.Exit that is never.
func (s *Server) Run(ctx context.Context, sig <-chan os.Signal, exit func(code int)) error {
	exited := make(chan struct{})
	go func() {
		AwaitTermination(sig, exit, s.logger)
		close(exited)
	}()

	if err := s.Start(ctx); err != nil {
		return err
	}
	<-exited
	return nil
}
