package services

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Server is one listener started by a serve command.
type Server struct {
	Name     string
	Run      func() error
	Shutdown func() error
}

// Serve runs every server until one of them fails or SIGINT/SIGTERM
// arrives, then shuts all of them down in order.
func Serve(log *slog.Logger, servers ...Server) error {
	// Channel to capture errors from goroutines
	errChan := make(chan error, len(servers))

	for _, srv := range servers {
		go func() {
			if err := srv.Run(); err != nil {
				errChan <- fmt.Errorf("%s error: %w", srv.Name, err)
			}
		}()
	}

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case runErr = <-errChan:
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
	}

	for _, srv := range servers {
		if err := srv.Shutdown(); err != nil {
			log.Warn("shutdown failed", "server", srv.Name, "error", err)
		}
	}

	return runErr
}
