package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"picoserve/internal/netif"
	"picoserve/internal/wsgi"
)

func newServeCommand() *cobra.Command {
	var (
		port    int
		sockets int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo application on the socket-pool server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			srv := wsgi.New(wsgi.Config{
				Interface:   netif.NewNetInterface(),
				Port:        port,
				PoolSize:    sockets,
				Timeout:     timeout,
				Logger:      logger,
				Application: demoApp,
			})
			if err := srv.Start(); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			for {
				select {
				case <-sigCh:
					logger.Info("Shutting down")
					return srv.Close()
				default:
				}
				if err := srv.Poll(); err != nil {
					logger.Error("Poll", zap.Error(err))
				}
				time.Sleep(5 * time.Millisecond)
			}
		},
	}
	cmd.Flags().IntVar(&port, "port", wsgi.DefaultPort, "listening port")
	cmd.Flags().IntVar(&sockets, "sockets", wsgi.DefaultPoolSize, "listening socket pool size")
	cmd.Flags().DurationVar(&timeout, "timeout", wsgi.DefaultTimeout, "per-connection read/write timeout")
	return cmd
}

func demoApp(env wsgi.Environ, start wsgi.StartResponse) ([]any, error) {
	switch env["PATH_INFO"] {
	case "/":
		start("200 OK", [][2]string{{"Content-Type", "text/html"}})
		return []any{"<html><body><h1>picoserve</h1></body></html>\n"}, nil
	case "/echo":
		body, err := io.ReadAll(env[wsgi.InputKey].(io.Reader))
		if err != nil {
			return nil, err
		}
		start("200 OK", [][2]string{{"Content-Type", "application/octet-stream"}})
		return []any{body}, nil
	default:
		start("404 Not Found", [][2]string{{"Content-Type", "text/plain"}})
		return []any{"not found\n"}, nil
	}
}
