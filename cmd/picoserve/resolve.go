package main

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/spf13/cobra"

	"picoserve/internal/netif"
	"picoserve/internal/resolver"
)

func newResolveCommand() *cobra.Command {
	var (
		server  string
		port    int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "resolve <hostname>",
		Short: "Resolve a hostname to an IPv4 address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			serverAddr, err := netip.ParseAddr(server)
			if err != nil {
				return fmt.Errorf("invalid server address %q: %w", server, err)
			}
			r := resolver.New(resolver.Config{
				Interface: netif.NewNetInterface(),
				Server:    serverAddr,
				Port:      port,
				Timeout:   timeout,
				Logger:    logger,
			})
			addr, err := r.Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Println(netip.AddrFrom4(addr))
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "1.1.1.1", "DNS server address")
	cmd.Flags().IntVar(&port, "port", resolver.DefaultPort, "DNS server port")
	cmd.Flags().DurationVar(&timeout, "timeout", resolver.DefaultTimeout, "per-attempt wait window")
	return cmd
}
