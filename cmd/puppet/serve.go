package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gwillem/puppet/pkg/server"
)

const shutdownTimeout = 10 * time.Second

type ServeCommand struct {
	Port string `short:"p" long:"port" env:"PUPPET_HTTP_PORT" default:"8080" description:"HTTP listen port"`
	Host string `long:"host" default:"" description:"HTTP listen address"`
}

func (c *ServeCommand) Execute(args []string) error {
	return withSession(func(ctx context.Context, s *session) error {
		h := server.NewHandler(s.seq, s.log, s.metrics)

		addr := net.JoinHostPort(c.Host, c.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: h.Routes(),
			// Requests see the signal, so a running sequence stops at its next step
			BaseContext: func(net.Listener) context.Context { return ctx },
		}

		errCh := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		s.log.Info("server starting",
			"addr", addr,
			"driver", s.cfg.Driver.Kind,
			"poses", s.store.NumPoses(),
			"sequences", s.store.NumSequences(),
		)

		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
		}

		s.log.Info("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		// Wait for the last motion request before the puppet is reset
		if cerr := h.Close(shutdownCtx); cerr != nil {
			s.log.Warn("reset after shutdown incomplete", "error", cerr)
		}
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}

		s.log.Info("server stopped")
		return nil
	})
}
